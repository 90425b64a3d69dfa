package conf

/*
   This is a package that wraps viper, a package designed to handle config
   files, for the denial review app.

   Lookup order:
   1. A local.env file found in one of the configured locations (or the
   directory named by DENIALS_CONF_DIR).
   2. The process environment, for any key the file does not track.

   Assumptions:
   1. The configuration file is an env file
   2. The configuration file, once it is made available to the application,
   will stay immutable during the uptime of the application (exception is test)
*/

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

const (
	configgood    uint8 = 0
	configbad     uint8 = 1
	noconfigfound uint8 = 2
)

var state uint8 = configgood

func setup(dir string) *viper.Viper {
	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	// Viper is lazy, do the read and parse of the config file
	if err := v.ReadInConfig(); err != nil {
		state = configbad
	}

	return v
}

func init() {
	var locations = []string{
		os.Getenv("DENIALS_CONF_DIR"),
		".",
		"..",
	}

	if success, loc := findEnv(locations); success {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

// findEnv walks the candidate locations and returns the first one holding a local.env file.
func findEnv(location []string) (bool, string) {
	if len(location) == 0 {
		return false, ""
	}

	if location[0] != "" {
		if _, err := os.Stat(location[0] + "/local.env"); err == nil {
			return true, location[0]
		}
	}

	return findEnv(location[1:])
}

// GetEnv retrieves a value stored in conf, falling back to the environment.
// If it does not exist "" is returned.
func GetEnv(key string) string {
	value, _ := LookupEnv(key)
	return value
}

// LookupEnv augments os.LookupEnv to look in the viper struct first.
func LookupEnv(key string) (string, bool) {
	if state == configgood {
		if value := envVars.GetString(key); value != "" {
			return value, true
		}

		// Even if the config file is loaded, keys it does not track come from
		// the environment. Copy them over to prevent additional OS calls.
		if v, exist := os.LookupEnv(key); exist {
			envVars.Set(key, v)
			return v, true
		}

		return "", false
	}

	return os.LookupEnv(key)
}

// SetEnv adds key values into conf. This function should only be used either in this
// package itself or testing. The protect parameter is there to ensure developers
// knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	if state == configgood {
		envVars.Set(key, value)
		return nil
	}

	return os.Setenv(key, value)
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either in this
// package itself or testing.
func UnsetEnv(protect *testing.T, key string) error {
	if state == configgood {
		envVars.Set(key, "")
	}

	// Unset the environment variable too, since LookupEnv falls through to it.
	return os.Unsetenv(key)
}

// GetEnvInt returns the integer value of key, or defaultVal when it is unset or malformed.
func GetEnvInt(key string, defaultVal int) int {
	if v := GetEnv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetEnvDuration returns the duration value of key (e.g. "30s", "5m"), or defaultVal when it
// is unset or malformed.
func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := GetEnv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
