package bettable

import (
	"fmt"
	"strings"
)

// Outcome é um dos resultados possíveis do mercado 1x2.
// NotAvailable indica "ainda não decidido" e nunca é um resultado concreto.
type Outcome string

const (
	NotAvailable Outcome = "not_available"
	Home         Outcome = "home"
	Draw         Outcome = "draw"
	Away         Outcome = "away"
)

// Outcomes lista os resultados concretos, na ordem do mercado.
var Outcomes = []Outcome{Home, Draw, Away}

// IsConcreteOutcome retorna true para qualquer resultado diferente de NotAvailable.
// Usado tanto para o outcome recebido como para o outcome armazenado.
func IsConcreteOutcome(o Outcome) bool {
	switch o {
	case Home, Draw, Away:
		return true
	}
	return false
}

// ParseOutcome converte a string do transporte ("home" | "draw" | "away" | "not_available")
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if o == NotAvailable || IsConcreteOutcome(o) {
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) String() string { return string(o) }
