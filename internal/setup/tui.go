package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/materialwatch/config"
)

// DefaultConfigFile is where the wizard writes its result.
const DefaultConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collected by the wizard, all in their textual form.
type Answers struct {
	TickInterval string
	Window       string
	Volatility   string
	Unit         string
	Seeds        string
	WebAddr      string
	Console      bool
}

// DefaultAnswers mirror config.Default.
func DefaultAnswers() Answers {
	d := config.Default()
	seeds := make([]string, 0, len(d.Seeds))
	for _, s := range d.Seeds {
		seeds = append(seeds, s.Name+"="+s.Price.String())
	}

	return Answers{
		TickInterval: d.TickInterval.String(),
		Window:       strconv.Itoa(d.HistoryWindowSize),
		Volatility:   d.PriceVolatility.String(),
		Unit:         d.Unit,
		Seeds:        strings.Join(seeds, ", "),
		WebAddr:      d.WebAddr,
		Console:      d.Console,
	}
}

// RunTUI launches the terminal configuration wizard and returns the written file.
func RunTUI() (string, error) {
	a := DefaultAnswers()
	var confirm bool

	showStep := func(step string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("MATERIAL PRICE DASHBOARD SETUP"))
		fmt.Println(stepStyle.Render(step))
	}

	showStep("STEP 1: MARKET")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Tune the simulated market.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tick Interval").
				Description("Duration string (e.g. 2s, 500ms)").
				Value(&a.TickInterval).
				Validate(validateInterval),
			huh.NewInput().
				Title("History Window").
				Description("Prices kept per material, at least 2").
				Value(&a.Window).
				Validate(validateWindow),
			huh.NewInput().
				Title("Volatility").
				Description("Max fraction a price moves per tick (e.g. 0.025)").
				Value(&a.Volatility).
				Validate(validateVolatility),
			huh.NewInput().
				Title("Unit").
				Value(&a.Unit),
		),
	).Run()
	if err != nil {
		return "", err
	}

	showStep("STEP 2: MATERIALS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Seed Materials").
				Description("Comma separated Name=Price pairs").
				Value(&a.Seeds).
				Validate(func(s string) error {
					_, err := ParseSeeds(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return "", err
	}

	showStep("STEP 3: OUTPUT")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Web Address").
				Description("Leave empty to disable the HTTP dashboard").
				Value(&a.WebAddr),
			huh.NewConfirm().
				Title("Render in terminal?").
				Value(&a.Console),
		),
	).Run()
	if err != nil {
		return "", err
	}

	showStep("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Tick: %s\nWindow: %s\nVolatility: %s\nUnit: %s\nSeeds: %s\nWeb: %s\nConsole: %t\n",
		a.TickInterval, a.Window, a.Volatility, a.Unit, a.Seeds, a.WebAddr, a.Console,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := WriteConfig(DefaultConfigFile, a); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", DefaultConfigFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return DefaultConfigFile, nil
}

// WriteConfig renders answers as yaml into filename.
func WriteConfig(filename string, a Answers) error {
	cfgTmp, err := BuildConfig(a)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// BuildConfig converts answers into the yaml config shape.
func BuildConfig(a Answers) (config.ConfigTmp, error) {
	if err := validateInterval(a.TickInterval); err != nil {
		return config.ConfigTmp{}, err
	}
	if err := validateWindow(a.Window); err != nil {
		return config.ConfigTmp{}, err
	}
	if err := validateVolatility(a.Volatility); err != nil {
		return config.ConfigTmp{}, err
	}
	seeds, err := ParseSeeds(a.Seeds)
	if err != nil {
		return config.ConfigTmp{}, err
	}

	tick, _ := time.ParseDuration(a.TickInterval)
	window, _ := strconv.Atoi(a.Window)
	webAddr := strings.TrimSpace(a.WebAddr)

	return config.ConfigTmp{
		TickInterval:      tick,
		HistoryWindowSize: window,
		PriceVolatility:   a.Volatility,
		Unit:              strings.TrimSpace(a.Unit),
		Seeds:             seeds,
		WebAddr:           &webAddr,
		Console:           a.Console,
	}, nil
}

// ParseSeeds reads "Name=Price, Name=Price".
func ParseSeeds(s string) ([]config.SeedTmp, error) {
	var seeds []config.SeedTmp
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, price, ok := strings.Cut(part, "=")
		name, price = strings.TrimSpace(name), strings.TrimSpace(price)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid seed %q: must be Name=Price", part)
		}
		d, err := decimal.NewFromString(price)
		if err != nil || !d.IsPositive() {
			return nil, fmt.Errorf("seed %q must have a positive price", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate seed %q", name)
		}
		seen[name] = struct{}{}
		seeds = append(seeds, config.SeedTmp{Name: name, Price: price})
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one seed material is required")
	}
	return seeds, nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration like 2s")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateWindow(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 2 {
		return fmt.Errorf("must be at least 2")
	}
	return nil
}

func validateVolatility(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}
