package hledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"fjacquet/csv-hledger/internal/errs"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single hledger invocation.
const DefaultTimeout = 30 * time.Second

// Validator checks a ledger file for syntax and balance errors.
type Validator interface {
	Check(ctx context.Context, filePath string) error
}

// Runner executes the hledger binary and parses its output.
type Runner struct {
	BinaryPath string
	Timeout    time.Duration
}

// NewRunner creates a Runner for the given binary. An empty path defaults to
// "hledger" on PATH; a zero timeout defaults to DefaultTimeout.
func NewRunner(binaryPath string, timeout time.Duration) *Runner {
	if binaryPath == "" {
		binaryPath = "hledger"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{BinaryPath: binaryPath, Timeout: timeout}
}

// BalanceEntry is one account's balance from a balance report.
type BalanceEntry struct {
	Account   string
	Amount    decimal.Decimal
	Commodity string
}

// BalanceResult is the parsed output of `hledger bal`.
type BalanceResult struct {
	Balances []BalanceEntry
	Total    decimal.Decimal
}

// Exec runs the hledger binary with the given arguments and returns stdout.
// The process is killed when the timeout elapses. A non-zero exit yields a
// *errs.ProcessError carrying the captured output.
func (r *Runner) Exec(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	log.WithFields(logrus.Fields{
		"binary": r.BinaryPath,
		"args":   strings.Join(args, " "),
	}).Debug("Executing hledger command")

	cmd := exec.CommandContext(ctx, r.BinaryPath, args...)

	// Run relative includes from the ledger file's directory.
	for i, arg := range args {
		if arg == "-f" && i+1 < len(args) {
			if dir := filepath.Dir(args[i+1]); dir != "" {
				cmd.Dir = dir
			}
			break
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", &errs.ProcessError{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      fmt.Errorf("hledger command timed out after %s", r.Timeout),
		}
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		log.WithFields(logrus.Fields{
			"args":     strings.Join(args, " "),
			"exitCode": exitCode,
			"stderr":   stderr.String(),
		}).Error("hledger command failed")
		return "", &errs.ProcessError{
			ExitCode: exitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	return stdout.String(), nil
}

// Check validates a ledger file with `hledger check`. Exit code 1 means the
// file has validation errors, returned as a *errs.ValidationError; any other
// failure propagates as a process error.
func (r *Runner) Check(ctx context.Context, filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return &errs.ValidationError{
			FilePath: filePath,
			Errors:   []string{fmt.Sprintf("file not found: %s", filePath)},
		}
	}

	_, err := r.Exec(ctx, "check", "-f", filePath)
	if err == nil {
		return nil
	}

	var procErr *errs.ProcessError
	if errors.As(err, &procErr) && procErr.ExitCode == 1 {
		return &errs.ValidationError{
			FilePath: filePath,
			Errors:   parseValidationErrors(procErr.Stderr),
		}
	}
	return err
}

// Balances runs `hledger bal -O json` and parses the report. Optional account
// patterns narrow the report.
func (r *Runner) Balances(ctx context.Context, filePath string, accounts ...string) (*BalanceResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("ledger file not found: %s", filePath)
	}

	args := append([]string{"bal", "-f", filePath, "-O", "json"}, accounts...)
	output, err := r.Exec(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseBalanceOutput(output)
}

// parseBalanceOutput decodes hledger's balance JSON: a two-element array of
// [accountRows, totals], where each account row is
// [name, displayName, depth, [amounts]].
func parseBalanceOutput(output string) (*BalanceResult, error) {
	var root []json.RawMessage
	if err := json.Unmarshal([]byte(output), &root); err != nil {
		return nil, fmt.Errorf("parsing hledger balance output: %w", err)
	}
	if len(root) < 1 {
		return &BalanceResult{}, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(root[0], &rows); err != nil {
		return nil, fmt.Errorf("parsing hledger balance accounts: %w", err)
	}

	result := &BalanceResult{}
	for _, row := range rows {
		var tuple []json.RawMessage
		if err := json.Unmarshal(row, &tuple); err != nil || len(tuple) < 4 {
			continue
		}

		var account string
		if err := json.Unmarshal(tuple[0], &account); err != nil {
			continue
		}

		var amounts []struct {
			Commodity string `json:"acommodity"`
			Quantity  struct {
				FloatingPoint float64 `json:"floatingPoint"`
			} `json:"aquantity"`
		}
		if err := json.Unmarshal(tuple[3], &amounts); err != nil || len(amounts) == 0 {
			continue
		}

		amount := decimal.NewFromFloat(amounts[0].Quantity.FloatingPoint)
		result.Balances = append(result.Balances, BalanceEntry{
			Account:   account,
			Amount:    amount,
			Commodity: amounts[0].Commodity,
		})
		result.Total = result.Total.Add(amount)
	}
	return result, nil
}

func parseValidationErrors(stderr string) []string {
	var errors []string
	for _, line := range strings.Split(stderr, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			errors = append(errors, line)
		}
	}
	if len(errors) == 0 {
		errors = []string{"unknown validation error"}
	}
	return errors
}
