package main

import (
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/traffic-hcsm/task"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/input"
	"gopkg.in/yaml.v2"
)

var (
	// task name used in logs
	job = flag.String("job", "job0", "the name of the simulation task")
	// configuration file path
	configPath = flag.String("config", "", "config file path")
	// base64 encoded configuration
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// downloaded collections are cached here, empty disables the cache
	cacheDir = flag.String("cache", "data/", "input cache dir path (empty means disable cache)")

	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "log level (trace debug info warn error critical off)")

	log = logrus.WithField("module", "hcsm-sim")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	var c config.Config
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	log.Infof("%+v", c)

	in, err := input.Init(c, *cacheDir)
	if err != nil {
		log.Panicf("input load err: %v", err)
	}
	t, err := task.NewContext(*job, c, in.Map)
	if err != nil {
		log.Panicf("task init err: %v", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Info("interrupted, stopping after the current frame")
		t.Close()
	}()
	t.Run()
}
