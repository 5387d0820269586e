package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"minirel/btree"
	"minirel/db"
	"minirel/transaction"
)

var (
	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Check a b+ tree index file and report its shape",
		RunE:  inspectRun,
	}

	inspectFile   = ""
	inspectSchema = ""
	inspectKey    = 0
)

func init() {
	fs := inspectCmd.Flags()
	fs.StringVar(&inspectFile, "file", inspectFile, "btree index `file` to inspect")
	fs.StringVar(&inspectSchema, "schema", inspectSchema, "comma separated column types, e.g. int,string")
	fs.IntVar(&inspectKey, "key", inspectKey, "key field index the tree is keyed on")

	rootCmd.AddCommand(inspectCmd)
}

func inspectRun(cmd *cobra.Command, args []string) error {
	if inspectFile == "" || inspectSchema == "" {
		return fmt.Errorf("inspect requires --file and --schema")
	}

	desc, err := parseSchema(inspectSchema)
	if err != nil {
		return err
	}

	database := db.New(poolSize)
	bf, err := btree.OpenFile(inspectFile, desc, inspectKey, database.Pool)
	if err != nil {
		return err
	}
	defer bf.Close()
	database.Catalog.AddTable(bf, inspectFile, desc.FieldName(inspectKey))

	tid := transaction.NewTxnID()
	defer func() {
		if err := database.Pool.TransactionComplete(tid, true); err != nil {
			log.WithError(err).Warn("commit failed")
		}
	}()

	if err := bf.CheckIntegrity(tid); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	count, err := bf.CountTuples(tid)
	if err != nil {
		return err
	}

	fmt.Printf("pages:  %d\n", bf.NumPages())
	fmt.Printf("tuples: %d\n", count)
	fmt.Println("integrity: ok")
	return nil
}
