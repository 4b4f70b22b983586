// Copyright Contributors to the Open Cluster Management project

package config

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"

	klog "k8s.io/klog/v2"
)

const (
	DEFAULT_HTTP_PORT             = 4020
	DEFAULT_USER_CACHE_TTL        = 120000  // 2 minutes. Time (ms) a user's project list is kept before a new lookup is required.
	DEFAULT_CACHE_EXPIRE_INTERVAL = 60000   // 1 minute. Period (ms) of the background cache expiration job.
	DEFAULT_CACHE_EXPIRE_DELAY    = 5000    // 5 seconds. Initial delay (ms) before the first cache expiration pass.
	DEFAULT_ACL_EXPIRE_IN         = 3600000 // 1 hour. Lifetime (ms) stamped on generated ACL entries.
	DEFAULT_ACL_EXPIRE_INTERVAL   = 300000  // 5 minutes. Period (ms) of the stale ACL entry cleanup job.
	DEFAULT_RELOAD_TIMEOUT        = 5000    // 5 seconds. Max time (ms) to wait for the enforcement layer to reload.
	DEFAULT_AUTH_CACHE_TTL        = 60000   // 1 minute. Time (ms) a token review result is cached.
	DEFAULT_ROLE_STRATEGY         = "user"
	DEFAULT_LEGACY_INDEX_PREFIX   = "project"
	DEFAULT_DB_HOST               = "localhost"
	DEFAULT_DB_USER               = "searchacl"
	DEFAULT_DB_NAME               = "searchacl"
	DEFAULT_DB_PORT               = int(5432)
	DEFAULT_DB_MAX_CONNS          = int(10)
)

// Define a config type to hold our config properties.
type Config struct {
	HttpPort            int
	UserCacheTTL        int    // Time (ms) a cached user entry stays valid after its last refresh.
	CacheExpireInterval int    // Period (ms) between background cache expiration passes.
	CacheExpireDelay    int    // Delay (ms) before the first cache expiration pass.
	ACLExpireIn         int    // Lifetime (ms) of generated ACL entries.
	ACLExpireInterval   int    // Period (ms) between stale ACL entry cleanup passes.
	ReloadTimeout       int    // Max wait (ms) for the reload signal after a document write.
	AuthCacheTTL        int    // Time (ms) a token review result is cached.
	RoleStrategy        string // Shape of the generated ACL documents: "user" or "project".
	LegacyIndexPrefix   string // Extra index-pattern prefix kept for pre-uid index naming. Empty disables.
	DBHost              string
	DBUser              string
	DBName              string
	DBPass              string
	DBPort              int
	DBMaxConns          int
}

var Cfg = Config{}

// Reads the config from the environment. Order of preference is env -> default constants.
func New() Config {
	setDefaultInt(&Cfg.HttpPort, "HTTP_PORT", DEFAULT_HTTP_PORT)
	setDefaultInt(&Cfg.UserCacheTTL, "USER_CACHE_TTL", DEFAULT_USER_CACHE_TTL)
	setDefaultInt(&Cfg.CacheExpireInterval, "CACHE_EXPIRE_INTERVAL", DEFAULT_CACHE_EXPIRE_INTERVAL)
	setDefaultInt(&Cfg.CacheExpireDelay, "CACHE_EXPIRE_DELAY", DEFAULT_CACHE_EXPIRE_DELAY)
	setDefaultInt(&Cfg.ACLExpireIn, "ACL_EXPIRE_IN_MILLIS", DEFAULT_ACL_EXPIRE_IN)
	setDefaultInt(&Cfg.ACLExpireInterval, "ACL_EXPIRE_INTERVAL", DEFAULT_ACL_EXPIRE_INTERVAL)
	setDefaultInt(&Cfg.ReloadTimeout, "ACL_SYNC_RELOAD_TIMEOUT", DEFAULT_RELOAD_TIMEOUT)
	setDefaultInt(&Cfg.AuthCacheTTL, "AUTH_CACHE_TTL", DEFAULT_AUTH_CACHE_TTL)
	setDefault(&Cfg.RoleStrategy, "ACL_ROLE_STRATEGY", DEFAULT_ROLE_STRATEGY)
	setDefault(&Cfg.LegacyIndexPrefix, "ACL_LEGACY_INDEX_PREFIX", DEFAULT_LEGACY_INDEX_PREFIX)
	setDefault(&Cfg.DBHost, "DB_HOST", DEFAULT_DB_HOST)
	setDefault(&Cfg.DBUser, "DB_USER", DEFAULT_DB_USER)
	setDefault(&Cfg.DBName, "DB_NAME", DEFAULT_DB_NAME)
	setDefault(&Cfg.DBPass, "DB_PASSWORD", "")
	Cfg.DBPass = url.QueryEscape(Cfg.DBPass)
	setDefaultInt(&Cfg.DBPort, "DB_PORT", DEFAULT_DB_PORT)
	setDefaultInt(&Cfg.DBMaxConns, "DB_MAX_CONNS", DEFAULT_DB_MAX_CONNS)

	if Cfg.RoleStrategy != "user" && Cfg.RoleStrategy != "project" {
		klog.Warningf("Unknown ACL_ROLE_STRATEGY [%s]. Using default: %s", Cfg.RoleStrategy, DEFAULT_ROLE_STRATEGY)
		Cfg.RoleStrategy = DEFAULT_ROLE_STRATEGY
	}
	return Cfg
}

// Format and print environment to logger.
func (cfg *Config) PrintConfig() {
	// Make a copy to redact secrets and sensitive information.
	tmp := *cfg
	tmp.DBPass = "[REDACTED]"

	// Convert to JSON for nicer formatting.
	cfgJSON, err := json.MarshalIndent(tmp, "", "\t")
	if err != nil {
		klog.Warning("Encountered a problem formatting configuration. ", err)
		klog.Infof("Configuration %#v\n", tmp)
		return
	}
	klog.Infof("Using configuration:\n%s\n", string(cfgJSON))
}

func getEnv(env, defaultVal string) string {
	if val := os.Getenv(env); val != "" {
		return val
	}
	return defaultVal
}

func setDefault(field *string, env, defaultVal string) {
	if val := os.Getenv(env); val != "" {
		if env == "DB_PASSWORD" {
			klog.Infof("Using %s from environment", env)
		} else {
			klog.Infof("Using %s from environment: %s", env, val)
		}
		*field = val
	} else if *field == "" && defaultVal != "" {
		// Skip logging when running tests to reduce confusing output.
		if !strings.HasSuffix(os.Args[0], ".test") {
			klog.Infof("%s not set, using default value: %s", env, defaultVal)
		}
		*field = defaultVal
	}
}

func setDefaultInt(field *int, env string, defaultVal int) {
	if val := os.Getenv(env); val != "" {
		klog.Infof("Using %s from environment: %s", env, val)
		var err error
		*field, err = strconv.Atoi(val)
		if err != nil {
			klog.Error("Error parsing env [", env, "].  Expected an integer.  Original error: ", err)
		}
	} else if *field == 0 && defaultVal != 0 {
		// Skip logging when running tests to reduce confusing output.
		if !strings.HasSuffix(os.Args[0], ".test") {
			klog.Infof("No %s from file or environment, using default value: %d", env, defaultVal)
		}
		*field = defaultVal
	}
}
