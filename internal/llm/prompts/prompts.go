// Package prompts builds the French grading prompt sent to the scoring
// backend. Candidate text is embedded between quote fences, so it is
// sanitized against fence injection before templating.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

// maxContentRunes caps candidate text length in a prompt. A task should
// top out under 200 words; anything bigger is pasted or hostile input.
const maxContentRunes = 10000

var fenceRegex = regexp.MustCompile(`"{3,}`)

var taskLabels = map[int]string{
	1: "message informel (registre familier)",
	2: "message semi-formel (courriel professionnel)",
	3: "lettre formelle (institution officielle)",
}

var (
	loadOnce  sync.Once
	loadErr   error
	gradeTmpl *template.Template
)

// GradeData holds template data for the grading prompt.
type GradeData struct {
	TaskNumber int
	TaskLabel  string
	Content    string
}

func load() {
	data, err := templateFS.ReadFile("templates/grade.txt")
	if err != nil {
		loadErr = fmt.Errorf("read grade template: %w", err)
		return
	}
	gradeTmpl, loadErr = template.New("grade").Parse(string(data))
}

// Build renders the grading prompt for one task.
func Build(taskNumber int, content string) (string, error) {
	label, ok := taskLabels[taskNumber]
	if !ok {
		return "", fmt.Errorf("invalid task number %d", taskNumber)
	}

	loadOnce.Do(load)
	if loadErr != nil {
		return "", loadErr
	}

	data := GradeData{
		TaskNumber: taskNumber,
		TaskLabel:  label,
		Content:    Sanitize(content),
	}

	var buf bytes.Buffer
	if err := gradeTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Sanitize neutralizes the prompt's quote fences inside candidate text
// and bounds its length.
func Sanitize(content string) string {
	content = fenceRegex.ReplaceAllString(content, `"`)
	content = strings.TrimSpace(content)

	if content == "" {
		return "[Aucun texte fourni]"
	}

	if utf8.RuneCountInString(content) > maxContentRunes {
		runes := []rune(content)
		content = string(runes[:maxContentRunes]) + "\n\n[Texte tronqué]"
	}

	return content
}
