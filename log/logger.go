package log

import (
	"os"
	"path/filepath"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/sirupsen/logrus"
)

var (
	API      logrus.FieldLogger
	Request  logrus.FieldLogger
	Gateway  logrus.FieldLogger
	Upload   logrus.FieldLogger
	Analysis logrus.FieldLogger
	Health   logrus.FieldLogger
)

func init() {
	setup()
}

func setup() {
	env := conf.GetEnv("DEPLOYMENT_TARGET")

	API = Logger(logrus.New(), conf.GetEnv("DENIALS_ERROR_LOG"), "api", env)
	Request = Logger(logrus.New(), conf.GetEnv("DENIALS_REQUEST_LOG"), "api", env)
	Gateway = Logger(logrus.New(), conf.GetEnv("DENIALS_GATEWAY_LOG"), "gateway", env)
	Upload = Logger(logrus.New(), conf.GetEnv("DENIALS_UPLOAD_LOG"), "upload", env)
	Analysis = Logger(logrus.New(), conf.GetEnv("DENIALS_ANALYSIS_LOG"), "analysis", env)
	Health = Logger(logrus.New(), conf.GetEnv("DENIALS_HEALTH_LOG"), "health", env)
}

// Logger configures logger to write JSON to outputFile (stderr when empty or unopenable)
// and tags every entry with the application and environment.
func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	logger.SetFormatter(&logrus.JSONFormatter{})
	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
