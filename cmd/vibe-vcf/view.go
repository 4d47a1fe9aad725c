package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/output"
	"github.com/inodb/vibe-vcf/internal/vcf"
	"github.com/inodb/vibe-vcf/internal/vcfio"
)

// outputTab selects the per-site summary instead of a variant format.
const outputTab = "tab"

type viewOptions struct {
	output        string
	outputType    string
	threads       int
	dropGenotypes bool
	allowMissing  bool
	readOpts      vcf.Options
}

func newViewCmd() *cobra.Command {
	var opts viewOptions

	cmd := &cobra.Command{
		Use:   "view [options] <input>",
		Short: "Convert a VCF or BCF file",
		Long: `Read a VCF or BCF file (plain, gzip or BGZF; use '-' for stdin) and write it
as VCF, BCF or a per-site summary table.`,
		Example: `  vibe-vcf view in.vcf.gz                  # decompress to stdout
  vibe-vcf view -O b -o out.bcf in.vcf     # convert to BGZF-compressed BCF
  vibe-vcf view -O tab in.bcf              # per-site summary
  vibe-vcf view --threads 8 -O z -o out.vcf.gz in.vcf`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"view.threads":           "threads",
				"vcf.lenient":            "lenient",
				"vcf.allele_warn_length": "allele-warn-length",
				"vcf.repair_header":      "repair-header",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.threads = viper.GetInt("view.threads")
			opts.readOpts = vcf.Options{
				AlleleWarnLength: viper.GetInt("vcf.allele_warn_length"),
				Lenient:          viper.GetBool("vcf.lenient"),
				SkipHeaderRepair: !viper.GetBool("vcf.repair_header"),
				Logger:           logger,
			}
			return runView(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", vcfio.Stdio, "Output file")
	cmd.Flags().StringVarP(&opts.outputType, "output-type", "O", "v",
		"Output type: v (VCF), z (BGZF VCF), u (BCF), b (BGZF BCF), tab (site summary)")
	cmd.Flags().Int("threads", 1, "Text decode and BGZF compression workers")
	cmd.Flags().BoolVar(&opts.dropGenotypes, "drop-genotypes", false, "Write sites only")
	cmd.Flags().BoolVar(&opts.allowMissing, "allow-undeclared", false,
		"Write keys missing from the header instead of failing (dropped in BCF output)")
	cmd.Flags().Bool("lenient", false, "Accept INFO keys without a value or declaration")
	cmd.Flags().Bool("repair-header", true, "Replace nonstandard declarations of reserved VCF keys")
	cmd.Flags().Int("allele-warn-length", vcf.DefaultAlleleWarnLength,
		"Warn about alleles longer than this; negative disables")

	return cmd
}

func runView(input string, opts viewOptions) error {
	r, err := vcfio.OpenVariants(input, opts.readOpts)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := createWriter(r.Header(), opts)
	if err != nil {
		return err
	}

	n, err := copyVariants(r, w, opts.threads, opts.readOpts)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		return err
	}

	logger.Info("view complete",
		zap.String("input", input),
		zap.String("output", opts.output),
		zap.Int("records", n))
	return nil
}

func createWriter(h *header.Header, opts viewOptions) (vcf.VariantWriter, error) {
	if opts.outputType == outputTab {
		out, err := vcfio.Create(opts.output, false, 0)
		if err != nil {
			return nil, err
		}
		tw := output.NewTabWriter(out)
		if err := tw.WriteHeader(h); err != nil {
			out.Close()
			return nil, err
		}
		return tw, nil
	}

	format, err := vcfio.ParseOutputFormat(opts.outputType)
	if err != nil {
		return nil, err
	}
	return vcfio.CreateVariants(opts.output, h, format, vcfio.WriterOptions{
		AllowMissingFieldsInHeader: opts.allowMissing,
		DropGenotypes:              opts.dropGenotypes,
		PassThroughGenotypes:       true,
		Threads:                    opts.threads,
		Logger:                     logger,
	})
}

// copyVariants writes every record of r to w and returns the count. Text
// input is decoded by a worker pool when threads > 1.
func copyVariants(r vcf.VariantReader, w vcf.VariantWriter, threads int, opts vcf.Options) (int, error) {
	if vr, ok := r.(*vcf.Reader); ok && threads > 1 {
		return copyParallel(vr, w, threads, opts)
	}

	n := 0
	for {
		vc, err := r.Next()
		if err != nil {
			return n, err
		}
		if vc == nil {
			return n, nil
		}
		if err := w.Write(vc); err != nil {
			return n, fmt.Errorf("write record %d: %w", r.LineNumber(), err)
		}
		n++
	}
}

func copyParallel(r *vcf.Reader, w vcf.VariantWriter, threads int, opts vcf.Options) (int, error) {
	items, errc := vcf.FeedLines(r)
	results := vcf.ParallelDecode(r.Header(), items, threads, opts)

	n := 0
	err := vcf.OrderedCollect(results, func(res vcf.WorkResult) error {
		if res.Err != nil {
			return res.Err
		}
		if err := w.Write(res.Variant); err != nil {
			return fmt.Errorf("write %s: %w", res.Variant.Locus(), err)
		}
		n++
		return nil
	})
	if readErr := <-errc; err == nil {
		err = readErr
	}
	return n, err
}
