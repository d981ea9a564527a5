package memory

import (
	"context"

	"trivia-session-service/internal/domain"
)

// StaticTemplateLoader serves a fixed in-memory bank (useful for tests and
// running without a database).
type StaticTemplateLoader struct {
	templates []domain.Template
}

func NewStaticTemplateLoader(templates []domain.Template) *StaticTemplateLoader {
	return &StaticTemplateLoader{templates: templates}
}

func (l *StaticTemplateLoader) LoadTemplates(_ context.Context) ([]domain.Template, error) {
	return l.templates, nil
}

// Template bank categories.
const (
	CategoryPopCulture = "Pop Culture"
	CategoryHistory    = "History"
	CategoryScience    = "Science & Nature"
	CategoryGeography  = "Geography"
	CategoryPersonal   = "Personal"
)

// BuiltinTemplates is the default pre-authored question bank.
func BuiltinTemplates() []domain.Template {
	return []domain.Template{
		{
			ID:            "pop-001",
			Category:      CategoryPopCulture,
			Prompt:        "Which movie won the Academy Award for Best Picture in 2020?",
			CorrectAnswer: "Parasite",
			Distractors:   []string{"1917", "Joker", "Once Upon a Time in Hollywood"},
		},
		{
			ID:            "pop-002",
			Category:      CategoryPopCulture,
			Prompt:        "Which band released the album 'Abbey Road'?",
			CorrectAnswer: "The Beatles",
			Distractors:   []string{"The Rolling Stones", "Led Zeppelin", "Pink Floyd"},
		},
		{
			ID:            "pop-003",
			Category:      CategoryPopCulture,
			Prompt:        "Who played Iron Man in the Marvel Cinematic Universe?",
			CorrectAnswer: "Robert Downey Jr.",
			Distractors:   []string{"Chris Evans", "Chris Hemsworth", "Mark Ruffalo"},
		},
		{
			ID:            "hist-001",
			Category:      CategoryHistory,
			Prompt:        "In what year did World War II end?",
			CorrectAnswer: "1945",
			Distractors:   []string{"1944", "1946", "1943"},
		},
		{
			ID:            "hist-002",
			Category:      CategoryHistory,
			Prompt:        "What year did the Berlin Wall fall?",
			CorrectAnswer: "1989",
			Distractors:   []string{"1991", "1987", "1990"},
		},
		{
			ID:            "hist-003",
			Category:      CategoryHistory,
			Prompt:        "Who was the first person to walk on the moon?",
			CorrectAnswer: "Neil Armstrong",
			Distractors:   []string{"Buzz Aldrin", "John Glenn", "Yuri Gagarin"},
		},
		{
			ID:            "sci-001",
			Category:      CategoryScience,
			Prompt:        "What is the chemical symbol for gold?",
			CorrectAnswer: "Au",
			Distractors:   []string{"Ag", "Go", "Gd"},
		},
		{
			ID:            "sci-002",
			Category:      CategoryScience,
			Prompt:        "What planet is known as the Red Planet?",
			CorrectAnswer: "Mars",
			Distractors:   []string{"Venus", "Jupiter", "Mercury"},
		},
		{
			ID:            "sci-003",
			Category:      CategoryScience,
			Prompt:        "What gas do plants absorb from the atmosphere?",
			CorrectAnswer: "Carbon dioxide",
			Distractors:   []string{"Oxygen", "Nitrogen", "Hydrogen"},
		},
		{
			ID:            "geo-001",
			Category:      CategoryGeography,
			Prompt:        "What is the capital of Australia?",
			CorrectAnswer: "Canberra",
			Distractors:   []string{"Sydney", "Melbourne", "Brisbane"},
		},
		{
			ID:            "geo-002",
			Category:      CategoryGeography,
			Prompt:        "Which is the longest river in the world?",
			CorrectAnswer: "The Nile",
			Distractors:   []string{"The Amazon", "The Yangtze", "The Mississippi"},
		},
		{
			ID:            "geo-003",
			Category:      CategoryGeography,
			Prompt:        "How many continents are there?",
			CorrectAnswer: "7",
			Distractors:   []string{"5", "6", "8"},
		},
		// Personal templates carry placeholder answers for the author to
		// replace before submitting.
		{
			ID:            "personal-001",
			Category:      CategoryPersonal,
			Prompt:        "What is my favorite movie of all time?",
			CorrectAnswer: "[Your favorite movie]",
			Distractors:   []string{"[Wrong option 1]", "[Wrong option 2]", "[Wrong option 3]"},
		},
		{
			ID:            "personal-002",
			Category:      CategoryPersonal,
			Prompt:        "What city was I born in?",
			CorrectAnswer: "[Your birth city]",
			Distractors:   []string{"[Wrong city 1]", "[Wrong city 2]", "[Wrong city 3]"},
		},
		{
			ID:            "personal-003",
			Category:      CategoryPersonal,
			Prompt:        "What is my hidden talent?",
			CorrectAnswer: "[Your hidden talent]",
			Distractors:   []string{"[Wrong talent 1]", "[Wrong talent 2]", "[Wrong talent 3]"},
		},
	}
}
