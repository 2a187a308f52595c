package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/awaistahir/smart-save/internal/config"
	"github.com/awaistahir/smart-save/internal/engine"
	"github.com/awaistahir/smart-save/internal/logging"
	"github.com/awaistahir/smart-save/internal/prices"
	"github.com/awaistahir/smart-save/internal/store"
	"github.com/awaistahir/smart-save/internal/weather"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string

	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smart-save",
		Short: "SmartSave - advice for cutting your electricity bill",
		Long: `SmartSave turns live power readings, your tariff and your monthly budget
into prioritised savings tips, an efficiency score and a budget projection.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			logger = logging.New(cfg.LogLevel, cfg.LogPretty, os.Stderr)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.smartsave/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default is $HOME/.smartsave/smartsave.db)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(tariffCmd())
	rootCmd.AddCommand(adviseCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(peakCmd())
	rootCmd.AddCommand(levelCmd())
	rootCmd.AddCommand(sampleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

// openAdvisor builds an advisor from saved settings and replays the newest
// stored samples into its rolling window
func openAdvisor(st *store.Store) (*advisor.Advisor, error) {
	settings, err := st.LoadSettings(cfg.Settings())
	if err != nil {
		return nil, err
	}

	adv := advisor.New(settings)
	samples, err := st.RecentSamples(engine.WindowSize)
	if err != nil {
		return nil, err
	}
	watts := make([]float64, 0, len(samples))
	for _, smp := range samples {
		watts = append(watts, smp.Watts)
	}
	n := adv.Seed(watts)
	logger.Debug().Int("samples", n).Msg("seeded rolling window")

	return adv, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize SmartSave with settings from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			settings := cfg.Settings()
			if err := st.SaveSettings(settings); err != nil {
				return err
			}

			fmt.Println("✓ Initialized settings")
			fmt.Printf("Database: %s\n", cfg.DBPath)
			fmt.Printf("Tariff:   %s (day %.2f, night %.2f, day hours %d-%d)\n",
				settings.Tariff.Name, settings.Tariff.DayPrice, settings.Tariff.NightPrice,
				settings.Tariff.DayStartHour, settings.Tariff.DayEndHour)
			fmt.Printf("Budget:   %.2f per month\n", settings.MonthlyBudget)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Record readings: smart-save sample add 850")
			fmt.Println("  2. Get advice:      smart-save advise")

			return nil
		},
	}
}

func tariffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Show or change the day/night tariff",
	}

	cmd.AddCommand(tariffShowCmd())
	cmd.AddCommand(tariffSetCmd())
	cmd.AddCommand(tariffImportCmd())

	return cmd
}

func tariffShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the tariff and the price in force now",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := st.LoadSettings(cfg.Settings())
			if err != nil {
				return err
			}
			price, period := engine.PriceAt(settings.Tariff, time.Now())

			return printJSON(map[string]interface{}{
				"plan":   settings.Tariff,
				"price":  price,
				"period": period,
			})
		},
	}
}

func tariffSetCmd() *cobra.Command {
	var name string
	var dayPrice, nightPrice float64
	var dayStart, dayEnd int

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change tariff prices or hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := st.LoadSettings(cfg.Settings())
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			plan := settings.Tariff
			if flags.Changed("name") {
				plan.Name = name
			}
			if flags.Changed("day") {
				plan.DayPrice = dayPrice
			}
			if flags.Changed("night") {
				plan.NightPrice = nightPrice
			}
			if flags.Changed("start") {
				plan.DayStartHour = dayStart
			}
			if flags.Changed("end") {
				plan.DayEndHour = dayEnd
			}

			if plan.DayPrice < 0 || plan.NightPrice < 0 {
				return fmt.Errorf("%w: prices must not be negative", engine.ErrInvalidInput)
			}
			if plan.DayStartHour < 0 || plan.DayStartHour > 23 || plan.DayEndHour < 0 || plan.DayEndHour > 23 {
				return fmt.Errorf("%w: hours must be within 0-23", engine.ErrInvalidInput)
			}

			settings.Tariff = plan
			if err := st.SaveSettings(settings); err != nil {
				return err
			}

			fmt.Printf("✓ Tariff %s: day %.2f, night %.2f, day hours %d-%d\n",
				plan.Name, plan.DayPrice, plan.NightPrice, plan.DayStartHour, plan.DayEndHour)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Tariff name")
	cmd.Flags().Float64Var(&dayPrice, "day", 0, "Day price per kWh")
	cmd.Flags().Float64Var(&nightPrice, "night", 0, "Night price per kWh")
	cmd.Flags().IntVar(&dayStart, "start", 7, "First day-rate hour (0-23)")
	cmd.Flags().IntVar(&dayEnd, "end", 23, "First night-rate hour (0-23)")

	return cmd
}

func tariffImportCmd() *cobra.Command {
	var region, date, name string
	var dayStart, dayEnd int

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Derive day/night prices from Octopus Agile half-hourly rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if !cmd.Flags().Changed("region") {
				region = cfg.Region
			}

			day := time.Now()
			if date != "today" {
				parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
				}
				day = parsed
			}

			slots, err := prices.NewOctopusClient(region).HalfHourly(ctx, day, region)
			if err != nil {
				return fmt.Errorf("fetching prices: %w", err)
			}
			logger.Info().Int("slots", len(slots)).Str("region", region).Msg("fetched unit rates")

			plan, err := prices.DayNightPlan(name, slots, dayStart, dayEnd, time.Local)
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := st.LoadSettings(cfg.Settings())
			if err != nil {
				return err
			}
			settings.Tariff = plan
			if err := st.SaveSettings(settings); err != nil {
				return err
			}

			return printJSON(plan)
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "C", "Octopus region (A-P)")
	cmd.Flags().StringVarP(&date, "date", "d", "today", "Date to average (YYYY-MM-DD or 'today')")
	cmd.Flags().StringVarP(&name, "name", "n", "Agile", "Tariff name")
	cmd.Flags().IntVar(&dayStart, "start", 7, "First day-rate hour (0-23)")
	cmd.Flags().IntVar(&dayEnd, "end", 23, "First night-rate hour (0-23)")

	return cmd
}

func adviseCmd() *cobra.Command {
	var power, daily, cost, temp, humidity, wind float64
	var day, code int
	var timeOfDay string
	var liveWeather bool
	var lights, climate, plugs, system int

	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Generate prioritised savings tips and a budget projection",
		RunE: func(cmd *cobra.Command, args []string) error {
			tod, err := engine.ParseTimeOfDay(timeOfDay)
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			adv, err := openAdvisor(st)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			in := advisor.Input{
				DailyConsumptionKWh: daily,
				DayOfMonth:          day,
				TimeOfDay:           tod,
			}
			if flags.Changed("power") {
				in.CurrentPower = engine.Float(power)
			}
			if flags.Changed("cost") {
				in.CostSoFar = engine.Float(cost)
			} else {
				recorded, err := st.CostSince(engine.CycleStart(time.Now()))
				if err != nil {
					return err
				}
				in.CostSoFar = engine.Float(recorded)
			}

			if flags.Changed("temp") || flags.Changed("humidity") || flags.Changed("wind") || flags.Changed("weather-code") {
				in.Weather = &engine.Weather{}
				if flags.Changed("temp") {
					in.Weather.Temperature = engine.Float(temp)
				}
				if flags.Changed("humidity") {
					in.Weather.Humidity = engine.Float(humidity)
				}
				if flags.Changed("wind") {
					in.Weather.Wind = engine.Float(wind)
				}
				if flags.Changed("weather-code") {
					in.Weather.Code = engine.Int(code)
				}
			} else if liveWeather {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				wx, err := weather.NewOpenMeteoClient(cfg.Latitude, cfg.Longitude).Current(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("weather unavailable, advising without it")
				} else {
					in.Weather = wx
				}
			}

			mix := engine.DeviceMix{}
			for cat, n := range map[engine.Category]int{
				engine.CategoryLight:   lights,
				engine.CategoryClimate: climate,
				engine.CategoryPlug:    plugs,
				engine.CategorySystem:  system,
			} {
				if n > 0 {
					mix[cat] = n
				}
			}
			if len(mix) > 0 {
				in.DeviceMix = mix
			}

			report := adv.Report(in)
			if report.AutoLevel {
				if err := st.SaveSettings(adv.Settings()); err != nil {
					return err
				}
			}

			return printJSON(report)
		},
	}

	cmd.Flags().Float64VarP(&power, "power", "p", 0, "Current power in watts (default: latest stored reading)")
	cmd.Flags().Float64VarP(&daily, "daily", "k", 0, "Actual daily consumption in kWh (default: estimate)")
	cmd.Flags().Float64Var(&cost, "cost", 0, "Cost so far this billing cycle (default: priced from recorded readings)")
	cmd.Flags().IntVar(&day, "day", 0, "Day of the billing cycle (default: day of month)")
	cmd.Flags().StringVarP(&timeOfDay, "time-of-day", "t", "", "morning, afternoon, evening or night (default: from clock)")
	cmd.Flags().Float64Var(&temp, "temp", 0, "Outdoor temperature in Celsius")
	cmd.Flags().Float64Var(&humidity, "humidity", 0, "Outdoor relative humidity in percent")
	cmd.Flags().Float64Var(&wind, "wind", 0, "Wind speed in km/h")
	cmd.Flags().IntVar(&code, "weather-code", 0, "WMO weather code (1-3 sunny, 80-82 rain showers)")
	cmd.Flags().BoolVarP(&liveWeather, "weather", "w", false, "Fetch current weather from Open-Meteo")
	cmd.Flags().IntVar(&lights, "lights", 0, "Number of light devices")
	cmd.Flags().IntVar(&climate, "climate", 0, "Number of climate devices")
	cmd.Flags().IntVar(&plugs, "plugs", 0, "Number of smart plugs")
	cmd.Flags().IntVar(&system, "system", 0, "Number of system devices")

	return cmd
}

func budgetCmd() *cobra.Command {
	var cost float64
	var day int

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Project this month's spend against the budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			adv, err := openAdvisor(st)
			if err != nil {
				return err
			}

			if day <= 0 {
				day = time.Now().Day()
			}
			if !cmd.Flags().Changed("cost") {
				cost, err = st.CostSince(engine.CycleStart(time.Now()))
				if err != nil {
					return err
				}
			}

			status, advice := adv.BudgetStatus(cost, day)
			return printJSON(map[string]interface{}{
				"budget": status,
				"advice": advice,
			})
		},
	}

	cmd.Flags().Float64Var(&cost, "cost", 0, "Cost so far this cycle (default: priced from readings recorded this month)")
	cmd.Flags().IntVar(&day, "day", 0, "Day of the billing cycle (default: day of month)")

	cmd.AddCommand(budgetSetCmd())

	return cmd
}

func budgetSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <amount>",
		Short: "Set the monthly budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("%w: budget must be a positive number", engine.ErrInvalidInput)
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := st.LoadSettings(cfg.Settings())
			if err != nil {
				return err
			}
			settings.MonthlyBudget = amount
			if err := st.SaveSettings(settings); err != nil {
				return err
			}

			fmt.Printf("✓ Monthly budget set to %.2f (%.2f per day)\n", amount, amount/engine.BillingCycleDays)
			return nil
		},
	}
}

func scoreCmd() *cobra.Command {
	var power, daily float64

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rate household efficiency from 0 to 100",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			adv, err := openAdvisor(st)
			if err != nil {
				return err
			}

			est := adv.Estimate()
			if !cmd.Flags().Changed("power") {
				power = est.LatestW
			}
			if !cmd.Flags().Changed("daily") {
				daily = est.DailyKWh
			}

			return printJSON(adv.Score(power, daily))
		},
	}

	cmd.Flags().Float64VarP(&power, "power", "p", 0, "Current power in watts (default: latest stored reading)")
	cmd.Flags().Float64VarP(&daily, "daily", "k", 0, "Daily consumption in kWh (default: estimate)")

	return cmd
}

func peakCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "peak",
		Short: "Find peak and quiet hours from stored readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("%w: days must be positive", engine.ErrInvalidInput)
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			hourly, err := st.HourlyAverages(time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			if len(hourly) == 0 {
				fmt.Println("No readings recorded yet")
				return nil
			}

			for _, rec := range engine.PeakHourRecommendations(hourly) {
				fmt.Println(rec)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "How many days of history to use")

	return cmd
}

func levelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level <minimal|balanced|aggressive|auto>",
		Short: "Fix the optimization level or derive it from the budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := st.LoadSettings(cfg.Settings())
			if err != nil {
				return err
			}

			if args[0] == "auto" {
				settings.AutoLevel = true
			} else {
				level, err := engine.ParseLevel(args[0])
				if err != nil {
					return err
				}
				settings.Level = level
				settings.AutoLevel = false
			}

			if err := st.SaveSettings(settings); err != nil {
				return err
			}

			fmt.Printf("✓ Level %s (auto: %t)\n", settings.Level, settings.AutoLevel)
			return nil
		},
	}
}

func sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Record power readings",
	}

	cmd.AddCommand(sampleAddCmd())

	return cmd
}

func sampleAddCmd() *cobra.Command {
	var prune int

	cmd := &cobra.Command{
		Use:   "add <watts>...",
		Short: "Add one or more power readings in watts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			adv, err := openAdvisor(st)
			if err != nil {
				return err
			}

			now := time.Now()
			added := 0
			for _, arg := range args {
				watts, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
				if err != nil || !adv.Record(watts) {
					logger.Warn().Str("value", arg).Msg("skipping malformed reading")
					continue
				}
				if err := st.AddSample(now, watts, adv.PriceAt(now)); err != nil {
					return err
				}
				added++
			}

			if prune > 0 {
				n, err := st.PruneSamples(now.AddDate(0, 0, -prune))
				if err != nil {
					return err
				}
				logger.Debug().Int64("removed", n).Msg("pruned old samples")
			}

			est := adv.Estimate()
			fmt.Printf("✓ Added %d of %d readings\n", added, len(args))
			fmt.Printf("  Window: %d samples, average %.0fW, ~%.2f kWh/day\n", est.Samples, est.AverageW, est.DailyKWh)

			return nil
		},
	}

	cmd.Flags().IntVar(&prune, "prune", 90, "Delete readings older than this many days (0 keeps everything)")

	return cmd
}
