package model

import "fmt"

// TaskConstraints is the fixed configuration for one task number.
// The word-count band and label never change; only the prompt text is
// replaced when a subject is chosen for the session.
type TaskConstraints struct {
	TaskNumber int    `json:"task_number"`
	MinWords   int    `json:"min_words"`
	MaxWords   int    `json:"max_words"`
	Label      string `json:"label"`
	Prompt     string `json:"prompt"`
}

var taskConstraints = [TaskCount]TaskConstraints{
	{
		TaskNumber: 1,
		MinWords:   60,
		MaxWords:   120,
		Label:      "Tâche 1 — Message informel",
		Prompt: "Vous devez écrire un message informel à un ami pour lui décrire " +
			"votre expérience récente au Canada. Utilisez un registre familier mais correct.",
	},
	{
		TaskNumber: 2,
		MinWords:   120,
		MaxWords:   150,
		Label:      "Tâche 2 — Message semi-formel",
		Prompt: "Vous devez écrire un courriel à votre employeur pour demander un congé. " +
			"Utilisez un registre semi-formel.",
	},
	{
		TaskNumber: 3,
		MinWords:   120,
		MaxWords:   180,
		Label:      "Tâche 3 — Message formel",
		Prompt: "Vous devez rédiger une lettre formelle à une institution (banque, mairie, " +
			"école) pour faire une réclamation ou une demande officielle.",
	},
}

// ConstraintsFor returns the constraints for a task number, with the prompt
// replaced by the subject's when one is supplied. Task numbers outside 1..3
// are a programming error and panic.
func ConstraintsFor(taskNumber int, subject *Subject) TaskConstraints {
	if taskNumber < 1 || taskNumber > TaskCount {
		panic(fmt.Sprintf("invalid task number %d", taskNumber))
	}
	c := taskConstraints[taskNumber-1]
	if subject != nil {
		switch taskNumber {
		case 1:
			c.Prompt = subject.Task1Prompt
		case 2:
			c.Prompt = subject.Task2Prompt
		case 3:
			c.Prompt = subject.Task3Prompt
		}
	}
	return c
}

// AllConstraints returns the constraint table for every task, subject-adjusted.
func AllConstraints(subject *Subject) [TaskCount]TaskConstraints {
	var out [TaskCount]TaskConstraints
	for n := 1; n <= TaskCount; n++ {
		out[n-1] = ConstraintsFor(n, subject)
	}
	return out
}
