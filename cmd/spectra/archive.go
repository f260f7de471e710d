package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbl8/spectra/caba"
)

func packCmd() *cobra.Command {
	var (
		mode       string
		compressor string
		bins       int
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "pack <in.caba> <out.caba>",
		Short: "Re-encode a container with different archival options",
		Long: `Pack decodes an existing container and re-encodes the spectrum with the
requested mode, compressor and binning. Repacking a Mode B container decodes
one phase realization first; the exact original coefficients are only
available from Mode A input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, _, err := caba.UnpackSpectrum(data)
			if err != nil {
				return err
			}
			m := caba.ModeA
			if mode == "B" {
				m = caba.ModeB
			} else if mode != "A" {
				return fmt.Errorf("mode must be A or B, got %q", mode)
			}
			comp, err := caba.ParseCompressor(compressor)
			if err != nil {
				return err
			}
			out, err := caba.Pack(s, caba.Options{
				Mode: m, Compressor: comp, Bins: bins, Seed: seed,
			})
			if err != nil {
				return err
			}
			if err := caba.WriteFile(args[1], out); err != nil {
				return err
			}
			fmt.Printf("packed %s -> %s (mode %s, %d bytes)\n", args[0], args[1], m, len(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "A", "Archival mode (A exact, B statistical)")
	cmd.Flags().StringVar(&compressor, "compressor", "none", "Payload compressor (none, gzip, zstd)")
	cmd.Flags().IntVar(&bins, "bins", 0, "Radial shell bins (mode B only, 0 = per mode)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Phase-regeneration seed (mode B)")
	return cmd
}

func unpackCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "unpack <in.caba> <out.caba>",
		Short: "Materialize a container as exact coefficients",
		Long: `Unpack decodes a container (redrawing phases for Mode B) and writes the
resulting spectrum back out as an uncompressed Mode A container, so the
realization is pinned down bit-exactly for later comparison.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			f, h, err := caba.Unpack(data, workers)
			if err != nil {
				return err
			}
			s, _, err := caba.UnpackSpectrum(data)
			if err != nil {
				return err
			}
			out, err := caba.Pack(s, caba.Options{Mode: caba.ModeA})
			if err != nil {
				return err
			}
			if err := caba.WriteFile(args[1], out); err != nil {
				return err
			}
			fmt.Printf("unpacked %s (mode %s) -> %s\n", args[0], h.Mode, args[1])
			fmt.Printf("field: energy=%.6f max|u|=%.6f\n", f.Energy(), f.MaxAbs())
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Transform workers (0 = all CPUs)")
	return cmd
}

func verifyCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "verify <container>",
		Short: "Verify a container end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rep, err := caba.Verify(data, workers)
			if err != nil {
				return err
			}
			fmt.Println(rep.Digest())
			if rep.Mode == caba.ModeB {
				fmt.Printf("spectrum: max_dev=%.2e rms_dev=%.2e cross_corr=%+.4f\n",
					rep.SpecMaxDev, rep.SpecRMSDev, rep.CrossCorr)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Transform workers (0 = all CPUs)")
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <container>",
		Short: "Dump a container header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			h, err := caba.UnmarshalHeader(data)
			if err != nil {
				return err
			}
			fmt.Printf("format:     CABA %d.%d\n", caba.VersionMajor, caba.VersionMinor)
			fmt.Printf("mode:       %s\n", h.Mode)
			fmt.Printf("dims:       %d x %d x %d\n", h.Dims[0], h.Dims[1], h.Dims[2])
			fmt.Printf("nyquist:    %d %d %d\n", h.Nyquist[0], h.Nyquist[1], h.Nyquist[2])
			fmt.Printf("compressor: %s\n", h.Compressor)
			if h.Mode == caba.ModeB {
				fmt.Printf("seed:       %d\n", h.Seed)
				if h.BinCount > 0 {
					fmt.Printf("bins:       %d radial shells\n", h.BinCount)
				} else {
					fmt.Printf("bins:       per mode\n")
				}
			}
			fmt.Printf("parseval:   %.6f\n", h.Parseval)
			fmt.Printf("payload:    %d bytes raw, %d stored\n", h.PayloadRaw, h.PayloadStored)
			fmt.Printf("checksum:   %x\n", h.Checksum)
			return nil
		},
	}
}
