package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/safwentrabelsi/civilchain-server/config"
	"github.com/safwentrabelsi/civilchain-server/controller"
	"github.com/safwentrabelsi/civilchain-server/ethclient"
	"github.com/safwentrabelsi/civilchain-server/format"
	"github.com/safwentrabelsi/civilchain-server/rpc"
	"github.com/safwentrabelsi/civilchain-server/session"
	"github.com/safwentrabelsi/civilchain-server/sidecar"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagOutput string

var rootCmd = &cobra.Command{
	Use:   "civilchain-server",
	Short: "CivilChain service request portal",
	Long:  "Serve the CivilChain pages and JSON-RPC endpoint, or query the request ledger from the command line.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setup()
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format: json|text")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the pages and the JSON-RPC endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})

	var query, mine string
	requestsCmd := &cobra.Command{
		Use:   "requests",
		Short: "List every service request with its creation transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRequests(cmd.Context(), query, mine)
		},
	}
	requestsCmd.Flags().StringVar(&query, "query", "", "Free-text search over id, address, service, description and transaction hash")
	requestsCmd.Flags().StringVar(&mine, "mine", "", "Only list requests filed by this address")
	rootCmd.AddCommand(requestsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tx <hash>",
		Short: "Show a request creation transaction with its last status update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showTransaction(cmd.Context(), args[0])
		},
	})
}

// setup loads the environment and configures the logger.
func setup() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file loaded: ", err)
	}
	if err := config.LoadConfig(); err != nil {
		log.Fatal("Error loading the config: ", err)
	}

	cfg := config.GetConfig()
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	logLevel, err := log.ParseLevel(cfg.LogLevel())
	if err != nil {
		log.Fatal("Invalid log level in the config: ", err)
	}
	log.SetLevel(logLevel)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint
		log.Info("Shutting down")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg := config.GetConfig()

	client, err := ethclient.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize the ledger client: %w", err)
	}

	store, err := sidecar.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open the %s sidecar: %w", cfg.SidecarBackend(), err)
	}
	defer store.Close()

	sess := session.New(client, cfg.PollInterval())
	go sess.Monitor(ctx)

	service := rpc.NewCivilService(rpc.Pages{
		Public:  controller.NewPublic(client, sess),
		Citizen: controller.NewCitizen(client, sess, store),
		Officer: controller.NewOfficer(client, sess, store, cfg.OfficerAddress()),
		Detail:  controller.NewDetail(client, client.ContractAddress().Hex()),
	}, cfg.ExplorerURL())

	return rpc.StartServer(ctx, cfg.Addr(), service.Router())
}

func listRequests(ctx context.Context, query, mine string) error {
	cfg := config.GetConfig()
	client, err := ethclient.Init(ctx, cfg)
	if err != nil {
		return err
	}

	public := controller.NewPublic(client, session.New(client, cfg.PollInterval()))
	if err := public.Load(ctx); err != nil {
		return err
	}
	public.SetQuery(query)
	rows := public.View().Rows
	if mine != "" {
		rows = controller.OnlyMine(rows, mine)
	}

	if flagOutput == "json" {
		return printJSON(rows)
	}
	for _, row := range rows {
		fmt.Printf("%-6d %-13s %-13s %-26s %-22s %s\n",
			row.ID,
			format.TruncateAddress(row.Citizen),
			orDefault(format.TruncateAddress(row.TransactionHash), "N/A"),
			format.FormatTime(row.Timestamp),
			row.ServiceType,
			format.StatusDisplay(row.Status).Text,
		)
	}
	fmt.Printf("Total Requests: %d\n", len(rows))
	return nil
}

func showTransaction(ctx context.Context, hash string) error {
	cfg := config.GetConfig()
	client, err := ethclient.Init(ctx, cfg)
	if err != nil {
		return err
	}

	view, err := controller.NewDetail(client, client.ContractAddress().Hex()).Load(ctx, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", view.Error, err)
	}

	d := view.Detail
	if flagOutput == "json" {
		return printJSON(d)
	}
	fmt.Printf("Request ID:              %d\n", d.RequestID)
	fmt.Printf("Citizen Address:         %s\n", d.Citizen)
	fmt.Printf("Service Type:            %s\n", d.ServiceType)
	fmt.Printf("Status:                  %s\n", format.StatusDisplay(d.Status).Text)
	fmt.Printf("Created At:              %s\n", format.FormatTime(d.Timestamp))
	fmt.Printf("Source Transaction:      %s\n", d.SourceTx)
	fmt.Printf("Destination Transaction: %s\n", orDefault(d.DestinationTx, "No updates yet"))
	if d.DestinationTimestamp != 0 {
		fmt.Printf("Last Updated:            %s\n", format.FormatTime(d.DestinationTimestamp))
	} else {
		fmt.Println("Last Updated:            Not updated yet")
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
