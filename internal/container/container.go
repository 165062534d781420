// Package container provides dependency wiring for the application. Stores
// and services are built lazily from configuration so commands only pay for
// what they use.
package container

import (
	"path/filepath"
	"time"

	"fjacquet/csv-hledger/internal/audit"
	"fjacquet/csv-hledger/internal/config"
	"fjacquet/csv-hledger/internal/dedup"
	"fjacquet/csv-hledger/internal/detect"
	"fjacquet/csv-hledger/internal/hledger"
	"fjacquet/csv-hledger/internal/importer"
	"fjacquet/csv-hledger/internal/mappings"
	"fjacquet/csv-hledger/internal/rules"
)

// Store file names under the configured data directory.
const (
	rulesFile        = "rules.yaml"
	transactionsFile = "transactions.yaml"
	mappingsFile     = "mappings.yaml"
	importsFile      = "imports.yaml"
	fileOpsFile      = "file_operations.yaml"
)

// Container assembles the application's stores and services from config.
type Container struct {
	Config *config.Config

	ruleStore     *rules.Store
	txStore       *dedup.TransactionStore
	mappingStore  *mappings.Store
	auditStore    *audit.Store
	runner        *hledger.Runner
	writer        *hledger.Writer
	importService *importer.Service
}

// New creates a Container for the given configuration.
func New(cfg *config.Config) *Container {
	return &Container{Config: cfg}
}

func (c *Container) dataPath(name string) string {
	return filepath.Join(c.Config.Data.Directory, name)
}

// RuleStore returns the categorization rule store.
func (c *Container) RuleStore() *rules.Store {
	if c.ruleStore == nil {
		c.ruleStore = rules.NewStore(c.dataPath(rulesFile))
	}
	return c.ruleStore
}

// TransactionStore returns the confirmed transaction store.
func (c *Container) TransactionStore() *dedup.TransactionStore {
	if c.txStore == nil {
		c.txStore = dedup.NewTransactionStore(c.dataPath(transactionsFile))
	}
	return c.txStore
}

// MappingStore returns the saved column mapping store.
func (c *Container) MappingStore() *mappings.Store {
	if c.mappingStore == nil {
		c.mappingStore = mappings.NewStore(c.dataPath(mappingsFile))
	}
	return c.mappingStore
}

// AuditStore returns the audit record store.
func (c *Container) AuditStore() *audit.Store {
	if c.auditStore == nil {
		c.auditStore = audit.NewStore(c.dataPath(importsFile), c.dataPath(fileOpsFile))
	}
	return c.auditStore
}

// Runner returns the hledger process runner.
func (c *Container) Runner() *hledger.Runner {
	if c.runner == nil {
		c.runner = hledger.NewRunner(
			c.Config.Hledger.BinaryPath,
			time.Duration(c.Config.Hledger.TimeoutSeconds)*time.Second,
		)
	}
	return c.runner
}

// Writer returns the atomic ledger file writer, validated by the Runner.
func (c *Container) Writer() *hledger.Writer {
	if c.writer == nil {
		c.writer = hledger.NewWriter(c.Runner(), hledger.NewFormatter(), c.Config.Ledger.BackupEnabled)
	}
	return c.writer
}

// ImportService returns the CSV import orchestration service.
func (c *Container) ImportService() *importer.Service {
	if c.importService == nil {
		c.importService = importer.NewService(
			importer.Options{
				LedgerFilePath: c.Config.Ledger.FilePath,
				DefaultAccount: c.Config.Ledger.DefaultAccount,
			},
			detect.NewEngine(c.Config.Import.ConfidenceThreshold),
			c.RuleStore(),
			c.TransactionStore(),
			c.MappingStore(),
			c.AuditStore(),
			c.Writer(),
		)
	}
	return c.importService
}
