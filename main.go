package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/csv-hledger/cmd/auditcmd"
	"fjacquet/csv-hledger/cmd/balance"
	"fjacquet/csv-hledger/cmd/importcsv"
	"fjacquet/csv-hledger/cmd/mappingscmd"
	"fjacquet/csv-hledger/cmd/restore"
	"fjacquet/csv-hledger/cmd/root"
	"fjacquet/csv-hledger/cmd/rulescmd"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func init() {
	// Load environment variables silently before any logging happens.
	loadEnvSilently()

	// Configure the global log level so every logger created afterwards
	// inherits it.
	configureLogLevelDirectly()

	root.Init()

	root.Cmd.AddCommand(importcsv.Cmd)
	root.Cmd.AddCommand(rulescmd.Cmd)
	root.Cmd.AddCommand(balance.Cmd)
	root.Cmd.AddCommand(restore.Cmd)
	root.Cmd.AddCommand(mappingscmd.Cmd)
	root.Cmd.AddCommand(auditcmd.Cmd)
}

// loadEnvSilently loads environment variables without logging anything.
func loadEnvSilently() {
	envFile := ".env"
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		envFile = filepath.Join("..", ".env")
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			return
		}
	}
	_ = godotenv.Load(envFile)
}

// configureLogLevelDirectly sets the global log level for all logrus
// instances before any command output is produced.
func configureLogLevelDirectly() {
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = "info"
	}

	logLevel, err := logrus.ParseLevel(strings.ToLower(logLevelStr))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
