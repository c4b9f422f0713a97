/*
Copyright 2024 Rahpay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rahpay/rahpay"
	"github.com/rahpay/rahpay/config"
	"github.com/rahpay/rahpay/database"
	"github.com/rahpay/rahpay/internal/notification"
)

// Rahpay represents the CLI application, encapsulating the root Cobra command.
type Rahpay struct {
	cmd *cobra.Command
}

// rahpayInstance holds the runtime service instance and its configuration,
// shared by the server and worker commands.
type rahpayInstance struct {
	rahpay *rahpay.Rahpay
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before any
// command runs.
func preRun(app *rahpayInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			configFile = "rahpay.json"
		}
		if err := config.InitConfig(configFile); err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		service, err := setupRahpay(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.rahpay = service
		app.cnf = cnf
		return nil
	}
}

// setupRahpay creates the service instance from the configured datasource.
func setupRahpay(cfg *config.Configuration) (*rahpay.Rahpay, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}
	service, err := rahpay.NewRahpay(db)
	if err != nil {
		return nil, fmt.Errorf("error creating rahpay: %v", err)
	}
	return service, nil
}

// NewCLI assembles the root command and its subcommands.
func NewCLI() *Rahpay {
	var configFile string
	r := &rahpayInstance{}

	var rootCmd = &cobra.Command{
		Use:   "rahpay",
		Short: "Payment aggregation settlement core",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./rahpay.json", "Configuration file for rahpay")
	rootCmd.PersistentPreRunE = preRun(r)

	rootCmd.AddCommand(serverCommands(r))
	rootCmd.AddCommand(workerCommands(r))

	return &Rahpay{cmd: rootCmd}
}

func (w Rahpay) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
