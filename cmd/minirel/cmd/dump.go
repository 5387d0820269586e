package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"minirel/db"
	"minirel/execution"
	"minirel/heap"
	"minirel/transaction"
)

var (
	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Print every tuple of a heap table file",
		RunE:  dumpRun,
	}

	dumpFile   = ""
	dumpSchema = ""
	dumpLimit  = 0
)

func init() {
	fs := dumpCmd.Flags()
	fs.StringVar(&dumpFile, "file", dumpFile, "heap table `file` to dump")
	fs.StringVar(&dumpSchema, "schema", dumpSchema, "comma separated column types, e.g. int,string")
	fs.IntVar(&dumpLimit, "limit", dumpLimit, "stop after this many rows; 0 for all")

	rootCmd.AddCommand(dumpCmd)
}

func dumpRun(cmd *cobra.Command, args []string) error {
	if dumpFile == "" || dumpSchema == "" {
		return fmt.Errorf("dump requires --file and --schema")
	}

	desc, err := parseSchema(dumpSchema)
	if err != nil {
		return err
	}

	database := db.New(poolSize)
	hf, err := heap.OpenFile(dumpFile, desc, database.Pool)
	if err != nil {
		return err
	}
	defer hf.Close()
	database.Catalog.AddTable(hf, dumpFile, "")

	tid := transaction.NewTxnID()
	defer func() {
		if err := database.Pool.TransactionComplete(tid, true); err != nil {
			log.WithError(err).Warn("commit failed")
		}
	}()

	scan, err := execution.NewSeqScan(tid, hf.ID(), database.Catalog)
	if err != nil {
		return err
	}
	if err := scan.Open(); err != nil {
		return err
	}
	defer scan.Close()

	tw := tablewriter.NewWriter(os.Stdout)
	header := make([]string, desc.NumFields())
	for i := range header {
		header[i] = desc.FieldName(i)
	}
	tw.SetHeader(header)

	rows := 0
	for {
		ok, err := scan.HasNext()
		if err != nil {
			return err
		}
		if !ok || (dumpLimit > 0 && rows >= dumpLimit) {
			break
		}
		t, err := scan.Next()
		if err != nil {
			return err
		}

		row := make([]string, desc.NumFields())
		for i := range row {
			row[i] = fmt.Sprint(t.Field(i))
		}
		tw.Append(row)
		rows++
	}

	tw.Render()
	fmt.Printf("%d rows, %d pages\n", rows, hf.NumPages())
	return nil
}
