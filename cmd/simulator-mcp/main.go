// Command simulator-mcp runs a physics simulation MCP server: projectile
// motion, harmonic oscillators, wave properties, the ideal gas law, and
// relativistic energy, plus physical constant resources.
package main

import (
	"context"
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

// Physical constants, SI units.
const (
	gravity           = 9.81
	speedOfLight      = 299792458
	planckConstant    = 6.62607015e-34
	boltzmannConstant = 1.380649e-23
	gasConstant       = 8.314462
	elementaryCharge  = 1.602176634e-19
)

func main() {
	_ = godotenv.Load()
	setupLogging(getEnv("MCP_LOG_LEVEL", "info"))

	server := nanohubmcp.NewServer("physics-simulator", "1.0.0",
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
	must(server.AddTool("projectile_motion", "Calculate projectile motion parameters.", projectileMotion,
		nanohubmcp.WithParamNames("v0", "angle", "h0"),
		nanohubmcp.WithDefaults(map[string]any{"h0": 0.0})))
	must(server.AddTool("harmonic_oscillator", "Calculate simple harmonic motion parameters.", harmonicOscillator,
		nanohubmcp.WithParamNames("mass", "spring_constant", "amplitude", "time")))
	must(server.AddTool("wave_properties", "Calculate wave properties.", waveProperties,
		nanohubmcp.WithParamNames("frequency", "wavelength", "medium_speed"),
		nanohubmcp.WithDefaults(map[string]any{"wavelength": nil, "medium_speed": nil})))
	must(server.AddTool("ideal_gas", "Ideal gas law calculator (PV = nRT). Provide 3 of the 4 variables to calculate the fourth.", idealGas,
		nanohubmcp.WithParamNames("pressure", "volume", "n_moles", "temperature"),
		nanohubmcp.WithDefaults(map[string]any{"pressure": nil, "volume": nil, "n_moles": nil, "temperature": nil})))
	must(server.AddTool("relativistic_energy", "Calculate relativistic energy and momentum.", relativisticEnergy,
		nanohubmcp.WithParamNames("rest_mass", "velocity"),
		nanohubmcp.WithTags("advanced")))

	must(server.AddResource("constants://physics", "physical_constants",
		"Fundamental physical constants.", physicalConstants,
		nanohubmcp.WithMIMEType("application/json")))
	must(server.AddResource("config://simulator/settings", "simulator_settings",
		"Simulator configuration settings.", simulatorSettings,
		nanohubmcp.WithMIMEType("application/json")))

	must(server.AddPrompt("physics_problem", "Generate a prompt to solve a physics problem.", physicsProblem,
		nanohubmcp.WithParamNames("problem_description")))
}

func projectileMotion(v0, angle, h0 float64) map[string]any {
	angleRad := angle * math.Pi / 180

	vx := v0 * math.Cos(angleRad)
	vy := v0 * math.Sin(angleRad)

	// Time of flight from the quadratic -0.5*g*t^2 + vy*t + h0 = 0.
	discriminant := vy*vy + 2*gravity*h0
	if discriminant < 0 {
		return map[string]any{"error": "Invalid parameters"}
	}
	tFlight := (vy + math.Sqrt(discriminant)) / gravity

	rangeX := vx * tFlight

	tMaxHeight := vy / gravity
	maxHeight := h0 + vy*tMaxHeight - 0.5*gravity*tMaxHeight*tMaxHeight

	trajectory := make([]map[string]any, 0, 21)
	for i := 0; i <= 20; i++ {
		t := tFlight * float64(i) / 20
		x := vx * t
		y := h0 + vy*t - 0.5*gravity*t*t
		trajectory = append(trajectory, map[string]any{
			"t": round(t, 3),
			"x": round(x, 3),
			"y": round(y, 3),
		})
	}

	return map[string]any{
		"range":              round(rangeX, 3),
		"max_height":         round(maxHeight, 3),
		"time_of_flight":     round(tFlight, 3),
		"initial_velocity_x": round(vx, 3),
		"initial_velocity_y": round(vy, 3),
		"trajectory":         trajectory,
	}
}

func harmonicOscillator(mass, springConstant, amplitude, t float64) map[string]any {
	omega := math.Sqrt(springConstant / mass)
	period := 2 * math.Pi / omega
	frequency := 1 / period

	// x = A*cos(omega*t)
	x := amplitude * math.Cos(omega*t)
	v := -amplitude * omega * math.Sin(omega*t)
	a := -amplitude * omega * omega * math.Cos(omega*t)

	kinetic := 0.5 * mass * v * v
	potential := 0.5 * springConstant * x * x
	totalEnergy := 0.5 * springConstant * amplitude * amplitude

	return map[string]any{
		"position":          round(x, 6),
		"velocity":          round(v, 6),
		"acceleration":      round(a, 6),
		"angular_frequency": round(omega, 6),
		"period":            round(period, 6),
		"frequency":         round(frequency, 6),
		"kinetic_energy":    round(kinetic, 6),
		"potential_energy":  round(potential, 6),
		"total_energy":      round(totalEnergy, 6),
	}
}

func waveProperties(frequency float64, wavelength, mediumSpeed *float64) map[string]any {
	f := frequency

	var v float64
	switch {
	case mediumSpeed != nil:
		v = *mediumSpeed
	case wavelength != nil:
		v = f * *wavelength
	default:
		v = speedOfLight
	}

	var lam float64
	if wavelength != nil {
		lam = *wavelength
	} else {
		lam = v / f
	}

	period := 1 / f
	waveNumber := 2 * math.Pi / lam
	angularFrequency := 2 * math.Pi * f
	photonEnergy := planckConstant * f

	return map[string]any{
		"frequency":            f,
		"wavelength":           round(lam, 9),
		"speed":                round(v, 3),
		"period":               round(period, 9),
		"wave_number":          round(waveNumber, 6),
		"angular_frequency":    round(angularFrequency, 6),
		"photon_energy_joules": photonEnergy,
		"photon_energy_eV":     round(photonEnergy/elementaryCharge, 6),
	}
}

func idealGas(pressure, volume, nMoles, temperature *float64) map[string]any {
	provided := 0
	for _, p := range []*float64{pressure, volume, nMoles, temperature} {
		if p != nil {
			provided++
		}
	}
	if provided != 3 {
		return map[string]any{"error": "Provide exactly 3 of: pressure, volume, n_moles, temperature"}
	}

	var P, V, n, T float64
	switch {
	case pressure == nil:
		V, n, T = *volume, *nMoles, *temperature
		P = n * gasConstant * T / V
	case volume == nil:
		P, n, T = *pressure, *nMoles, *temperature
		V = n * gasConstant * T / P
	case nMoles == nil:
		P, V, T = *pressure, *volume, *temperature
		n = P * V / (gasConstant * T)
	default:
		P, V, n = *pressure, *volume, *nMoles
		T = P * V / (n * gasConstant)
	}

	return map[string]any{
		"pressure_Pa":   round(P, 3),
		"pressure_atm":  round(P/101325, 6),
		"volume_m3":     round(V, 9),
		"volume_L":      round(V*1000, 6),
		"n_moles":       round(n, 6),
		"temperature_K": round(T, 3),
		"temperature_C": round(T-273.15, 3),
	}
}

func relativisticEnergy(ctx *nanohubmcp.Context, restMass, velocity float64) map[string]any {
	if math.Abs(velocity) >= speedOfLight {
		return map[string]any{"error": "Velocity must be less than speed of light"}
	}

	ctx.Info(fmt.Sprintf("Calculating relativistic properties for v = %v m/s", velocity))

	beta := velocity / speedOfLight
	gamma := 1 / math.Sqrt(1-beta*beta)

	restEnergy := restMass * speedOfLight * speedOfLight
	totalEnergy := gamma * restEnergy
	kineticEnergy := totalEnergy - restEnergy
	momentum := gamma * restMass * velocity

	return map[string]any{
		"lorentz_factor":       round(gamma, 9),
		"beta":                 round(beta, 9),
		"relativistic_mass_kg": gamma * restMass,
		"rest_energy_J":        restEnergy,
		"kinetic_energy_J":     kineticEnergy,
		"total_energy_J":       totalEnergy,
		"momentum_kg_m_s":      momentum,
	}
}

func physicalConstants() map[string]any {
	return map[string]any{
		"speed_of_light":             map[string]any{"value": speedOfLight, "unit": "m/s", "symbol": "c"},
		"gravitational_acceleration": map[string]any{"value": gravity, "unit": "m/s^2", "symbol": "g"},
		"planck_constant":            map[string]any{"value": planckConstant, "unit": "J*s", "symbol": "h"},
		"boltzmann_constant":         map[string]any{"value": boltzmannConstant, "unit": "J/K", "symbol": "k_B"},
		"gas_constant":               map[string]any{"value": gasConstant, "unit": "J/(mol*K)", "symbol": "R"},
		"avogadro_number":            map[string]any{"value": 6.02214076e23, "unit": "1/mol", "symbol": "N_A"},
		"electron_mass":              map[string]any{"value": 9.1093837015e-31, "unit": "kg", "symbol": "m_e"},
		"proton_mass":                map[string]any{"value": 1.67262192369e-27, "unit": "kg", "symbol": "m_p"},
		"elementary_charge":          map[string]any{"value": elementaryCharge, "unit": "C", "symbol": "e"},
	}
}

func simulatorSettings() map[string]any {
	return map[string]any{
		"precision":       6,
		"default_gravity": gravity,
		"supported_simulations": []string{
			"projectile_motion",
			"harmonic_oscillator",
			"wave_properties",
			"ideal_gas",
			"relativistic_energy",
		},
	}
}

func physicsProblem(problemDescription string) []nanohubmcp.Message {
	return []nanohubmcp.Message{
		nanohubmcp.UserMessage("Please solve this physics problem step by step: " + problemDescription),
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
