package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/bootloader/pkg/bootloader"
	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/kcmdline"
)

var osStdout io.Writer = os.Stdout

func cmdVariants(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(osStdout, 0, 0, 2, ' ', 0)
	for _, kind := range bootloader.Kinds() {
		b, err := bootloader.New(kind, disk.NewTree(), bootloader.Options{})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", kind, b.Name())
	}
	return w.Flush()
}

func cmdTargets(cmd *cobra.Command, args []string) error {
	inst, err := newInstallation(cmd.Flags())
	if err != nil {
		return err
	}
	b := inst.bootloader
	stage1, err := b.Stage1Device()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(osStdout, 0, 0, 2, ' ', 0)
	for _, d := range b.TargetDevices() {
		desc, err := b.DeviceDescription(d)
		if err != nil {
			return err
		}
		mark := ""
		if d == stage1 {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, d.Name, d.Size, desc)
	}
	return w.Flush()
}

func cmdKickstart(cmd *cobra.Command, args []string) error {
	inst, err := newInstallation(cmd.Flags())
	if err != nil {
		return err
	}
	if err := inst.setBootArgs(); err != nil {
		return err
	}
	return inst.bootloader.WriteKickstart(osStdout)
}

func cmdWrite(cmd *cobra.Command, args []string) error {
	inst, err := newInstallation(cmd.Flags())
	if err != nil {
		return err
	}
	return inst.write()
}

func setLogLevel(cmd *cobra.Command, args []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}
	switch {
	case verbose && quiet:
		return fmt.Errorf("cannot use --verbose and --quiet together")
	case verbose:
		logrus.SetLevel(logrus.DebugLevel)
	case quiet:
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.WarnLevel)
	}
	return nil
}

func run() error {
	rootCmd := &cobra.Command{
		Use:   "bootloader-install",
		Short: "Configure and install the bootloader of a freshly installed system",
		Long: `Configure and install the bootloader of a freshly installed system

The storage layout is read from a device tree description, the bootloader
settings from an optional TOML configuration. The bootloader variant is
derived from the running platform unless configured.`,
		PersistentPreRunE: setLogLevel,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Log errors only")

	variantsCmd := &cobra.Command{
		Use:          "variants",
		Short:        "List the supported bootloader variants",
		RunE:         cmdVariants,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
	rootCmd.AddCommand(variantsCmd)

	targetsCmd := &cobra.Command{
		Use:          "targets",
		Short:        "List the devices the bootloader can be installed to",
		RunE:         cmdTargets,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
	rootCmd.AddCommand(targetsCmd)

	kickstartCmd := &cobra.Command{
		Use:          "kickstart",
		Short:        "Print the kickstart bootloader command for the configuration",
		RunE:         cmdKickstart,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
	rootCmd.AddCommand(kickstartCmd)

	writeCmd := &cobra.Command{
		Use:          "write",
		Short:        "Write the bootloader configuration and install the bootloader",
		RunE:         cmdWrite,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
	rootCmd.AddCommand(writeCmd)

	for _, cmd := range []*cobra.Command{targetsCmd, kickstartCmd, writeCmd} {
		cmd.Flags().String("tree", "", "Device tree description (YAML)")
		cmd.Flags().String("config", "", "Bootloader configuration (TOML)")
		cmd.Flags().String("root", "/mnt/sysimage", "Root of the installed system")
		cmd.Flags().String("variant", "", "Bootloader variant, detected from the platform if empty")
		cmd.Flags().String("cmdline", kcmdline.ProcCmdline, "Kernel command line of the installer")
		if err := cmd.MarkFlagRequired("tree"); err != nil {
			return err
		}
	}

	return rootCmd.Execute()
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %s", err)
	}
}
