package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/duckdb"
	"github.com/inodb/vibe-vcf/internal/variant"
	"github.com/inodb/vibe-vcf/internal/vcf"
	"github.com/inodb/vibe-vcf/internal/vcfio"
)

const defaultBatchSize = 10000

func newLoadCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "load [options] <input>",
		Short: "Load a VCF or BCF file into DuckDB",
		Long: `Load the sites and genotypes of a VCF or BCF file into the sites and
genotypes tables of a DuckDB database. A file already loaded with the same
size and modification time is skipped unless --force is given; a changed or
forced file replaces the rows of its earlier load. Input read from stdin is
always appended.`,
		Example: `  vibe-vcf load --db variants.duckdb calls.vcf.gz
  vibe-vcf config set load.db ~/variants.duckdb
  vibe-vcf load calls.bcf`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"load.db":           "db",
				"load.batch_size":   "batch-size",
				"vcf.lenient":       "lenient",
				"vcf.repair_header": "repair-header",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := viper.GetString("load.db")
			if dbPath == "" {
				return fmt.Errorf("--db is required (or set load.db with vibe-vcf config set)")
			}
			opts := vcf.Options{
				Lenient:          viper.GetBool("vcf.lenient"),
				SkipHeaderRepair: !viper.GetBool("vcf.repair_header"),
				Logger:           logger,
			}
			return runLoad(args[0], dbPath, viper.GetInt("load.batch_size"), force, opts)
		},
	}

	cmd.Flags().String("db", "", "DuckDB database path")
	cmd.Flags().Int("batch-size", defaultBatchSize, "Records per appender batch")
	cmd.Flags().BoolVar(&force, "force", false, "Load even if the file was loaded before")
	cmd.Flags().Bool("lenient", false, "Accept INFO keys without a value or declaration")
	cmd.Flags().Bool("repair-header", true, "Replace nonstandard declarations of reserved VCF keys")

	return cmd
}

func runLoad(input, dbPath string, batchSize int, force bool, opts vcf.Options) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var fp duckdb.FileFingerprint
	if input != vcfio.Stdio {
		if fp, err = duckdb.StatFile(input); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		loaded, err := store.IsLoaded(fp)
		if err != nil {
			return err
		}
		if loaded && !force {
			logger.Info("file already loaded, skipping", zap.String("input", input))
			return nil
		}
		removed, err := store.RemoveFile(fp.Path)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("removed earlier load", zap.String("input", input), zap.Int64("sites", removed))
		}
	}

	r, err := vcfio.OpenVariants(input, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		batch = make([]*variant.VariantContext, 0, batchSize)
		first = store.NextSiteID()
		total int64
	)
	flush := func() error {
		if err := store.WriteVariants(batch); err != nil {
			return err
		}
		total += int64(len(batch))
		logger.Debug("loaded batch", zap.Int("records", len(batch)), zap.Int64("total", total))
		batch = batch[:0]
		return nil
	}
	for {
		vc, err := r.Next()
		if err != nil {
			return err
		}
		if vc == nil {
			break
		}
		batch = append(batch, vc)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if input != vcfio.Stdio {
		if err := store.RecordLoad(fp, first, total); err != nil {
			return err
		}
	}
	logger.Info("load complete",
		zap.String("input", input),
		zap.String("db", dbPath),
		zap.Int64("records", total))
	return nil
}
