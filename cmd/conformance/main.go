/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package conformance is the VC API Data Integrity conformance suite CLI.
package main

import (
	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustbloc/vc-conformance/cmd/conformance/runcmd"
	"github.com/trustbloc/vc-conformance/cmd/conformance/startcmd"
)

var logger = log.New("conformance")

func main() {
	rootCmd := &cobra.Command{
		Use: "conformance",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.AddCommand(runcmd.GetRunCmd())
	rootCmd.AddCommand(startcmd.GetStartCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to run conformance", log.WithError(err))
	}
}
