// Command stats-mcp runs a statistical analysis MCP server: descriptive
// statistics, correlation, linear regression, and normalization over
// comma-separated datasets, plus sample dataset resources.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	nanohubmcp "github.com/denphi/nanohub-mcp"
)

func main() {
	_ = godotenv.Load()
	setupLogging(getEnv("MCP_LOG_LEVEL", "info"))

	server := nanohubmcp.NewServer("data-analysis", "1.0.0",
		nanohubmcp.WithPathPrefix(os.Getenv("MCP_PATH_PREFIX")),
		nanohubmcp.WithLogger(log.Logger),
	)
	registerHandlers(server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", getEnv("MCP_HOST", "0.0.0.0"), getEnvInt("MCP_PORT", 8000))
	if err := server.Run(ctx, addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func registerHandlers(server *nanohubmcp.MCPServer) {
	must(server.AddTool("descriptive_stats", "Calculate descriptive statistics for a dataset.", descriptiveStats,
		nanohubmcp.WithParamNames("data")))
	must(server.AddTool("correlation", "Calculate Pearson correlation coefficient between two datasets.", correlation,
		nanohubmcp.WithParamNames("x_data", "y_data")))
	must(server.AddTool("linear_regression", "Perform simple linear regression (y = mx + b).", linearRegression,
		nanohubmcp.WithParamNames("x_data", "y_data")))
	must(server.AddTool("normalize", "Normalize a dataset with minmax or zscore scaling.", normalize,
		nanohubmcp.WithParamNames("data", "method"),
		nanohubmcp.WithDefaults(map[string]any{"method": "minmax"})))

	must(server.AddResource("data://samples/temperatures", "temperature_data",
		"Monthly average temperatures (Celsius) for a year.", temperatureData,
		nanohubmcp.WithMIMEType("application/json")))
	must(server.AddResource("data://samples/scatter", "scatter_data",
		"Sample data for scatter plot / correlation analysis.", scatterData,
		nanohubmcp.WithMIMEType("application/json")))

	must(server.AddPrompt("analyze_data", "Generate a prompt to analyze a dataset.", analyzeData,
		nanohubmcp.WithParamNames("data")))
}

// parseSeries converts a comma-separated list like "1, 2.5, 3" to floats.
func parseSeries(data string) ([]float64, error) {
	parts := strings.Split(data, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric value %q", strings.TrimSpace(p))
		}
		values = append(values, v)
	}
	return values, nil
}

func descriptiveStats(data string) (map[string]any, error) {
	values, err := parseSeries(data)
	if err != nil {
		return nil, err
	}
	n := len(values)
	if n == 0 {
		return map[string]any{"error": "Empty dataset"}, nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	return map[string]any{
		"count":  n,
		"mean":   round(mean, 6),
		"median": round(median, 6),
		"min":    sorted[0],
		"max":    sorted[n-1],
		"range":  sorted[n-1] - sorted[0],
		"std":    round(math.Sqrt(variance), 6),
		"sum":    sum,
	}, nil
}

func correlation(xData, yData string) (map[string]any, error) {
	x, err := parseSeries(xData)
	if err != nil {
		return nil, err
	}
	y, err := parseSeries(yData)
	if err != nil {
		return nil, err
	}

	n := len(x)
	if n != len(y) {
		return map[string]any{"error": "Datasets must have the same length"}, nil
	}
	if n < 2 {
		return map[string]any{"error": "Need at least 2 data points"}, nil
	}

	meanX := meanOf(x)
	meanY := meanOf(y)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		cov += (x[i] - meanX) * (y[i] - meanY)
		varX += (x[i] - meanX) * (x[i] - meanX)
		varY += (y[i] - meanY) * (y[i] - meanY)
	}
	cov /= float64(n)
	stdX := math.Sqrt(varX / float64(n))
	stdY := math.Sqrt(varY / float64(n))

	if stdX == 0 || stdY == 0 {
		return map[string]any{"error": "Standard deviation is zero"}, nil
	}

	r := cov / (stdX * stdY)
	return map[string]any{
		"correlation_coefficient": round(r, 6),
		"r_squared":               round(r*r, 6),
		"covariance":              round(cov, 6),
		"n":                       n,
	}, nil
}

func linearRegression(xData, yData string) (map[string]any, error) {
	x, err := parseSeries(xData)
	if err != nil {
		return nil, err
	}
	y, err := parseSeries(yData)
	if err != nil {
		return nil, err
	}

	n := len(x)
	if n != len(y) {
		return map[string]any{"error": "Datasets must have the same length"}, nil
	}
	if n < 2 {
		return map[string]any{"error": "Need at least 2 data points"}, nil
	}

	meanX := meanOf(x)
	meanY := meanOf(y)

	var numerator, denominator float64
	for i := 0; i < n; i++ {
		numerator += (x[i] - meanX) * (y[i] - meanY)
		denominator += (x[i] - meanX) * (x[i] - meanX)
	}
	if denominator == 0 {
		return map[string]any{"error": "Cannot compute regression (x values are constant)"}, nil
	}

	slope := numerator / denominator
	intercept := meanY - slope*meanX

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		pred := slope*x[i] + intercept
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}
	rSquared := 0.0
	if ssTot != 0 {
		rSquared = 1 - ssRes/ssTot
	}

	return map[string]any{
		"slope":     round(slope, 6),
		"intercept": round(intercept, 6),
		"r_squared": round(rSquared, 6),
		"equation":  fmt.Sprintf("y = %vx + %v", round(slope, 4), round(intercept, 4)),
		"n":         n,
	}, nil
}

func normalize(data, method string) (map[string]any, error) {
	values, err := parseSeries(data)
	if err != nil {
		return nil, err
	}
	n := len(values)
	if n == 0 {
		return map[string]any{"error": "Empty dataset"}, nil
	}

	switch method {
	case "minmax":
		minVal, maxVal := values[0], values[0]
		for _, v := range values {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
		normalized := make([]float64, n)
		if maxVal == minVal {
			for i := range normalized {
				normalized[i] = 0.5
			}
		} else {
			for i, v := range values {
				normalized[i] = round((v-minVal)/(maxVal-minVal), 6)
			}
		}
		return map[string]any{
			"normalized": normalized,
			"method":     "minmax",
			"min":        minVal,
			"max":        maxVal,
		}, nil

	case "zscore":
		mean := meanOf(values)
		var variance float64
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(n))
		normalized := make([]float64, n)
		if std != 0 {
			for i, v := range values {
				normalized[i] = round((v-mean)/std, 6)
			}
		}
		return map[string]any{
			"normalized": normalized,
			"method":     "zscore",
			"mean":       round(mean, 6),
			"std":        round(std, 6),
		}, nil

	default:
		return map[string]any{"error": "Unknown method. Use 'minmax' or 'zscore'"}, nil
	}
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func temperatureData() map[string]any {
	return map[string]any{
		"description": "Monthly average temperatures",
		"unit":        "Celsius",
		"data":        []float64{2.1, 3.5, 7.2, 12.1, 17.3, 21.5, 24.2, 23.8, 19.4, 13.2, 7.1, 3.2},
		"labels": []string{
			"Jan", "Feb", "Mar", "Apr", "May", "Jun",
			"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
		},
	}
}

func scatterData() map[string]any {
	return map[string]any{
		"description": "Study hours vs exam score",
		"x_label":     "Study Hours",
		"y_label":     "Exam Score",
		"x":           []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		"y":           []int{52, 58, 65, 68, 72, 78, 82, 85, 90, 95},
	}
}

func analyzeData(data string) []nanohubmcp.Message {
	return []nanohubmcp.Message{
		nanohubmcp.UserMessage("Please analyze this dataset and provide insights: " + data),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("registration failed")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
