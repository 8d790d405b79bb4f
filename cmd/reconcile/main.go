// Command reconcile turns a settlement statement into journal and error
// workbooks without running the HTTP service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"settlement-reconciler/internal/config"
	"settlement-reconciler/internal/reconciler"
	"settlement-reconciler/internal/services"
	"settlement-reconciler/internal/spreadsheet"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Error loading config: %v", err)
	}
	logger := config.NewLogger(cfg)
	logger.SetOutput(os.Stderr)

	if err := run(os.Args[1:], cfg, logger, os.Stdout); err != nil {
		logger.WithError(err).Error("reconciliation failed")
		os.Exit(1)
	}
}

func run(args []string, cfg *config.Config, logger logrus.FieldLogger, stdout io.Writer) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	statementPath := fs.String("statement", "", "Payment statement workbook (.xlsx)")
	registerPath := fs.String("register", "", "Sale register workbook (.xlsx)")
	templatePath := fs.String("template", "", "Matching template workbook (.xlsx)")
	orderType := fs.String("order-type", cfg.Reconcile.OrderType, "Order type (COD_ or Electronic_)")
	expense := fs.String("expense", cfg.Reconcile.ExpenseCategories, "Comma-separated amount descriptions folded into the principal")
	outDir := fs.String("out", ".", "Directory for the journal and error workbooks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *statementPath == "" || *registerPath == "" || *templatePath == "" {
		return errors.New("-statement, -register and -template are required")
	}

	files, closeFiles, err := openFiles(*statementPath, *registerPath, *templatePath)
	if err != nil {
		return err
	}
	defer closeFiles()

	svc := services.NewSettlementService(nil, logger, cfg.ReconcileDefaults(), nil, nil, nil)
	result, err := svc.Reconcile(services.RunRequest{
		Files:             files,
		OrderType:         *orderType,
		ExpenseCategories: reconciler.ParseExpenseCategories(*expense),
	})
	if err != nil {
		return err
	}

	journalPath := filepath.Join(*outDir, result.BatchID+"-journal.xlsx")
	if err := writeWorkbook(journalPath, services.JournalSheet(result.Journal)); err != nil {
		return err
	}
	errorsPath := filepath.Join(*outDir, result.BatchID+"-errors.xlsx")
	if err := writeWorkbook(errorsPath, services.ErrorSheet(result.Errors)); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s %s: %d journal lines, %d errors\n", result.BatchID, result.Period.Label(), len(result.Journal), len(result.Errors))
	fmt.Fprintln(stdout, journalPath)
	fmt.Fprintln(stdout, errorsPath)
	return nil
}

func openFiles(statement, register, template string) (services.Uploads, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, path := range []string{statement, register, template} {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return services.Uploads{}, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		opened = append(opened, f)
	}

	return services.Uploads{Statement: opened[0], Register: opened[1], Template: opened[2]}, closeAll, nil
}

func writeWorkbook(path string, sheet spreadsheet.Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := spreadsheet.Write(f, sheet); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
