// Command pictool bundles the assembler, linker, disassembler/stripper
// and hex-format converter for the PIC-family toolchain into a single
// binary, following the teacher's single-root cobra/viper wiring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var colorMode string
var verbosity int

var RootCmd = &cobra.Command{
	Use:   "pictool",
	Short: "Assembler, linker and disassembler for PIC-family microcontrollers",
	Long: `pictool is an assembler, linker and disassembler/stripper for the
PIC-family 8-bit microcontroller instruction sets, sharing one object
file format across all three tools.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.pictool.yaml)")
	RootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "diagnostic color mode: auto, always, never")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase diagnostic verbosity")
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(asmCmd, linkCmd, disCmd, stripCmd, hexCmd)
}

// initConfig reads a config file and environment variables, per the
// flags > PICTOOL_* env > $HOME/.pictool.yaml > defaults precedence.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pictool")
	}

	viper.SetEnvPrefix("PICTOOL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
