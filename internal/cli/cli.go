// Package cli prints to the terminal and prompts the user.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/buger/goterm"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var (
	userInputColor       = color.New(color.FgWhite)
	assistantOutputColor = color.New(color.FgCyan)
	titleColor           = color.New(color.FgMagenta, color.Bold)
	separatorColor       = color.New(color.FgHiBlack)
	errorColor           = color.New(color.FgRed)
	infoColor            = color.New(color.FgYellow)
	promptColor          = color.New(color.FgHiBlue)

	width = goterm.Width()
)

// ErrInterrupt is returned by PromptUser when the user presses ctrl+c or ctrl+d.
var ErrInterrupt = errors.New("interrupted")

// Separator printed to cli.
func Separator() {
	separator := strings.Repeat("-", width)
	separatorColor.Println(separator)
}

// Title printed to cli.
func Title(text string, args ...any) {
	title := "      " + fmt.Sprintf(text, args...) + "      "
	leftWidth := max((width-len(title))/2, 0)
	separator1 := strings.Repeat("-", leftWidth)
	separator2 := strings.Repeat("-", max(width-len(title)-len(separator1), 0))
	output := fmt.Sprintf("%s%s%s", separator1, title, separator2)
	titleColor.Println(output)
}

// UserInput printed to cli.
func UserInput(text string, args ...any) {
	userInputColor.Printf(text, args...)
}

// AssistantOutput printed to cli. The text is printed verbatim.
func AssistantOutput(text string) {
	assistantOutputColor.Print(text)
}

// Error printed to cli.
func Error(text string, args ...any) {
	errorColor.Printf(text+"\n", args...)
}

// Info printed to cli.
func Info(text string, args ...any) {
	infoColor.Printf(text, args...)
}

// Table prints rows as aligned columns. The first row is the header.
func Table(w io.Writer, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	table := goterm.NewTable(0, 8, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(table, strings.Join(row, "\t"))
	}
	header, body, _ := strings.Cut(table.String(), "\n")
	titleColor.Fprintln(w, header)
	fmt.Fprint(w, body)
}

// PromptUser for input. Lines are accumulated until ctrl+j is pressed.
func PromptUser(historyFile string) (string, error) {
	exit := false
	config := &readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistoryFile:       historyFile,
		HistorySearchFold: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			if r == '\x0A' { // Ctrl + J
				exit = true
			}
			return r, true
		},
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return "", errors.Wrap(err, "creating readline")
	}
	defer rl.Close()
	var lines []string
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return "", ErrInterrupt
		}
		if err != nil {
			return "", errors.Wrap(err, "reading line")
		}
		lines = append(lines, line)
		if exit {
			break
		}
		rl.SetPrompt("")
	}
	return strings.Join(lines, "\n"), nil
}

// QueryUser a yes/no question.
func QueryUser(question string) bool {
	surveyQuestion := &survey.Confirm{
		Message: question,
	}
	confirm := false
	if err := survey.AskOne(surveyQuestion, &confirm, survey.WithStdio(os.Stdin, os.Stdout, os.Stderr)); err != nil {
		return false
	}
	return confirm
}
