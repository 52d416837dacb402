// Command calculator-mcp runs a small arithmetic MCP server: four basic
// operations, a context-aware power tool, a settings resource, and a
// calculation prompt.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
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

	server := nanohubmcp.NewServer("simple-calculator", "1.0.0",
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
	must(server.AddTool("add", "Add two numbers together.", add,
		nanohubmcp.WithParamNames("a", "b")))
	must(server.AddTool("power", "Raise base to the power of exponent. Demonstrates Context usage.", power,
		nanohubmcp.WithParamNames("base", "exponent"),
		nanohubmcp.WithTypeComment("(float, float) -> float"),
		nanohubmcp.WithTags("math", "advanced")))
	must(server.AddTool("subtract", "Subtract b from a.", subtract,
		nanohubmcp.WithParamNames("a", "b")))
	must(server.AddTool("multiply", "Multiply two numbers.", multiply,
		nanohubmcp.WithParamNames("a", "b")))
	must(server.AddTool("divide", "Divide a by b.", divide,
		nanohubmcp.WithParamNames("a", "b")))

	must(server.AddResource("config://calculator/settings", "get_settings",
		"Get calculator settings.", getSettings))

	must(server.AddPrompt("calculate", "Generate a calculation prompt.", calculate,
		nanohubmcp.WithParamNames("expression")))
}

func add(a, b float64) float64      { return a + b }
func subtract(a, b float64) float64 { return a - b }
func multiply(a, b float64) float64 { return a * b }

func divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("Cannot divide by zero")
	}
	return a / b, nil
}

// power keeps its parameters loosely typed and leans on the type comment for
// its schema, so callers may send numbers or numeric strings.
func power(ctx *nanohubmcp.Context, base, exponent any) float64 {
	b := asFloat(base)
	e := asFloat(exponent)
	ctx.Info(fmt.Sprintf("Computing %v^%v", base, exponent))
	return math.Pow(b, e)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func getSettings() map[string]any {
	return map[string]any{
		"precision": 10,
		"max_value": 1e308,
		"supported_operations": []string{
			"add", "subtract", "multiply", "divide", "power",
		},
	}
}

func calculate(expression string) []nanohubmcp.Message {
	return []nanohubmcp.Message{
		nanohubmcp.UserMessage("Please calculate: " + expression),
	}
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
