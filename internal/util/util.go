package util

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
)

var (
	IsDebug        bool
	minQueryLength = 3

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45B7D1")).
			Italic(true)

	exampleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF69B4")).
			Bold(true)
)

// SetDebugMode sets the debug mode. Profiling rides along with it.
func SetDebugMode(debug bool) {
	IsDebug = debug
	PerfEnabled = debug
}

// GetSearchQuery gets the search query from command line arguments or user input
func GetSearchQuery() (string, error) {
	if len(flag.Args()) > 0 {
		query := strings.Join(flag.Args(), " ")

		queryDisplay := titleStyle.Render("🎯 Searching: " + query)
		fmt.Println(queryDisplay)

		if len(query) < minQueryLength {
			return "", fmt.Errorf("search query must have at least %d characters, you entered: %v", minQueryLength, query)
		}
		return query, nil
	}

	promptHeader := helpStyle.Render("🔍 Search for Anime")
	fmt.Println(promptHeader)

	return GetUserInput("Enter anime name")
}

// ErrorHandler returns a stylized error message
func ErrorHandler(err error) string {
	if IsDebug {
		errorMessage := "🚨 DEBUG ERROR 🔍"
		fullError := fmt.Sprintf("%+v", err)

		styledHeader := errorStyle.Render(errorMessage)
		styledError := debugErrorStyle.Render(fullError)

		return fmt.Sprintf("%s\n%s", styledHeader, styledError)
	}

	baseError := fmt.Sprintf("%v", err)
	hint := "run the program with -debug to see details"

	styledError := errorStyle.Render(fmt.Sprintf("❌ %s", baseError))
	styledHint := warningStyle.Render(fmt.Sprintf("💡 %s", hint))

	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// Helper prints the help message
func Helper() {
	title := titleStyle.Render("🎌 Gotaku - Anime Streaming in Your Terminal")

	usage := helpStyle.Render("📖 Usage:")
	usageExamples := []string{
		"  gotaku",
		"  gotaku " + optionStyle.Render("[options]"),
		"  gotaku " + optionStyle.Render("[options]") + " " + exampleStyle.Render("[anime name]"),
	}

	options := helpStyle.Render("⚙️  Options:")
	optionsList := []string{
		"  " + optionStyle.Render("-debug") + "     🐛 Enable debug mode with detailed information",
		"  " + optionStyle.Render("-download") + "  💾 Download an episode instead of playing it",
		"  " + optionStyle.Render("-update") + "    ⬆️  Check for a newer release",
		"  " + optionStyle.Render("-help, -h") + "  📚 Show this help message",
		"  " + optionStyle.Render("-version") + "   ℹ️  Show version information",
	}

	fmt.Println(title)
	fmt.Println()
	fmt.Println(usage)
	for _, line := range usageExamples {
		fmt.Println(line)
	}
	fmt.Println()
	fmt.Println(options)
	for _, line := range optionsList {
		fmt.Println(line)
	}
	fmt.Println()
}

// GetUserInput prompts the user for a line of input
func GetUserInput(label string) (string, error) {
	// Readline misbehaves on Windows terminals, use plain buffered input there
	if runtime.GOOS == "windows" {
		return getSimpleInput(label)
	}

	styledLabel := promptStyle.Render("🎮 " + label)

	prompt := promptui.Prompt{
		Label: styledLabel,
	}

	query, err := prompt.Run()
	if err != nil {
		return "", err
	}
	if len(query) < minQueryLength {
		return "", fmt.Errorf("search query must have at least %d characters, you entered: %v", minQueryLength, query)
	}

	return query, nil
}

// getSimpleInput provides a fallback input method for Windows
func getSimpleInput(label string) (string, error) {
	styledLabel := promptStyle.Render("🎮 " + label + ": ")
	fmt.Print(styledLabel)

	reader := bufio.NewReader(os.Stdin)
	query, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	query = strings.TrimSpace(query)
	if len(query) < minQueryLength {
		return "", fmt.Errorf("search query must have at least %d characters, you entered: %v", minQueryLength, query)
	}

	return query, nil
}

// Slugify lowercases a title and replaces spaces with dashes, matching the
// id format both providers use.
func Slugify(title string) string {
	lowered := strings.ToLower(title)
	return strings.ReplaceAll(lowered, " ", "-")
}
