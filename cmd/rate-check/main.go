package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/infrastructure/external/currency"
	"github.com/garyjia/expense-approval/pkg/utils"
)

func main() {
	from := flag.String("from", "USD", "Source currency")
	to := flag.String("to", "INR", "Target currency (comma separated for several)")
	baseURL := flag.String("url", currency.DefaultBaseURL, "Exchange rate provider base URL (keyless v4)")
	v6URL := flag.String("v6-url", currency.DefaultV6BaseURL, "Exchange rate provider base URL for keyed v6 requests")
	apiKey := flag.String("key", "", "Provider API key (or set EXCHANGE_RATE_API_KEY env var)")
	timeout := flag.Duration("timeout", currency.DefaultTimeout, "Provider call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger, err := utils.NewCLILogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *apiKey == "" {
		*apiKey = os.Getenv("EXCHANGE_RATE_API_KEY")
	}

	gateway := currency.NewGateway(currency.Config{
		BaseURL:   *baseURL,
		V6BaseURL: *v6URL,
		APIKey:    *apiKey,
		Timeout:   *timeout,
	}, logger)

	var targets []string
	for _, code := range strings.Split(*to, ",") {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			targets = append(targets, code)
		}
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: -to must name at least one currency")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()

	base := strings.ToUpper(*from)
	start := time.Now()
	rates, err := gateway.Rates(ctx, base, targets)
	if err != nil {
		logger.Error("Rate lookup failed", zap.String("base", base), zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("Rates for 1 %s (%v):\n", base, time.Since(start).Round(time.Millisecond))
	for _, code := range targets {
		fmt.Printf("  %s  %.6f\n", code, rates[code])
	}
}
