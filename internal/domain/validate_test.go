package domain

import (
	"errors"
	"testing"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(NewQuiz{
		TimePerQuestion: 500,
		Questions: []NewQuestion{
			{QuestionText: "2+2?", OptionA: "3", OptionB: "4", CorrectAnswer: "E"},
		},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got := map[string]string{}
	for _, f := range verr.Fields {
		got[f.Field] = f.Message
	}
	if _, ok := got["title"]; !ok {
		t.Fatalf("expected title error, got %+v", verr.Fields)
	}
	if _, ok := got["timePerQuestion"]; !ok {
		t.Fatalf("expected timePerQuestion error, got %+v", verr.Fields)
	}
	if msg := got["questions[0].correctAnswer"]; msg != "must be one of A, B, C, D" {
		t.Fatalf("unexpected correctAnswer message %q (all: %+v)", msg, verr.Fields)
	}
}

func TestValidateAcceptsMinimalQuiz(t *testing.T) {
	if err := Validate(NewQuiz{Title: "Capitals"}); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}
}

func TestValidatePin(t *testing.T) {
	for _, pin := range []string{"482913", "100000"} {
		if err := ValidatePin(pin); err != nil {
			t.Fatalf("pin %q: unexpected error %v", pin, err)
		}
	}
	for _, pin := range []string{"", "12345", "1234567", "12a456"} {
		if err := ValidatePin(pin); err == nil {
			t.Fatalf("pin %q: expected error", pin)
		}
	}
}

func TestQuestionOffers(t *testing.T) {
	c := "Paris"
	q := Question{OptionA: "Rome", OptionB: "Madrid", OptionC: &c}
	if !q.Offers(AnswerC) {
		t.Fatalf("expected option C offered")
	}
	if q.Offers(AnswerD) {
		t.Fatalf("expected option D absent")
	}
}
