package conversation

import (
	"fmt"
	"slices"
	"strings"
)

// Turn is the outcome of applying one visitor utterance to the dialogue.
type Turn struct {
	Slots       Slots
	Step        Step
	Instruction Instruction
	History     []Message
	// Completed is true only when this turn moved the dialogue into
	// StepComplete from an earlier step.
	Completed bool
}

// SubmitUserTurn applies utterance to the given dialogue state and returns
// the next state. It reports false, and does nothing, for a blank
// utterance. The inputs are never modified; the returned history is a new
// slice ending with the visitor's entry.
//
// Each call advances at most one step. A slot that already holds a value
// is left alone, but the step still advances past it.
func SubmitUserTurn(utterance string, slots Slots, step Step, history []Message) (Turn, bool) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Turn{}, false
	}
	if !step.Valid() {
		step = StepDevice
	}

	next := step.Next()
	switch step {
	case StepDevice:
		if slots.Device == "" {
			slots.Device = text
		}

	case StepContact:
		if slots.ContactRaw == "" {
			slots.ContactRaw = text
			if slots.ClientName == "" {
				slots.ClientName = ExtractName(text)
			}
			if slots.ClientPhone == "" {
				slots.ClientPhone = ExtractPhone(text)
			}
			if slots.ClientEmail == "" {
				if email := ExtractEmail(text); email != "" {
					slots.ClientEmail = email
					next = StepTime
				}
			}
		}

	case StepEmail:
		if slots.ClientEmail == "" {
			slots.ClientEmail = text
		}

	case StepTime:
		if slots.PreferredTime == "" {
			slots.PreferredTime = text
		}
	}

	h := slices.Clone(history)
	h = append(h, Message{Role: RoleUser, Content: text})

	return Turn{
		Slots:       slots,
		Step:        next,
		Instruction: NewInstruction(slots, next),
		History:     h,
		Completed:   step != StepComplete && next == StepComplete,
	}, true
}

// Instruction tells the reply generator which details are still pending
// and which one to ask for next.
type Instruction struct {
	Device  string
	Contact string
	Email   string
	Time    string
	Next    Step
}

// NewInstruction builds the instruction for the given slots and step.
func NewInstruction(s Slots, next Step) Instruction {
	return Instruction{
		Device:  s.Device,
		Contact: s.ContactRaw,
		Email:   s.ClientEmail,
		Time:    s.PreferredTime,
		Next:    next,
	}
}

// Pending lists the names of the details not yet captured, in dialogue order.
func (i Instruction) Pending() []string {
	var out []string
	for _, f := range []struct{ name, value string }{
		{"device", i.Device},
		{"contact", i.Contact},
		{"email", i.Email},
		{"time", i.Time},
	} {
		if f.value == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// Render formats the instruction as the workflow hint sent to the model.
func (i Instruction) Render() string {
	var b strings.Builder
	b.WriteString("Current appointment capture status:\n")
	fmt.Fprintf(&b, "- Device info: %s\n", orPending(i.Device))
	fmt.Fprintf(&b, "- Contact info: %s\n", orPending(i.Contact))
	fmt.Fprintf(&b, "- Email: %s\n", orPending(i.Email))
	fmt.Fprintf(&b, "- Preferred time: %s\n", orPending(i.Time))
	fmt.Fprintf(&b, "Next required step: %s.\n", i.Next)
	b.WriteString("If device info is pending, ask for make/model.\n")
	b.WriteString("If contact info is pending, thank them for the device info and ask for their full name plus phone number in one sentence.\n")
	b.WriteString("If the email is pending, ask for the best email to send confirmations.\n")
	b.WriteString("If preferred time is pending, offer morning, afternoon, or evening (or specific time) options.\n")
	b.WriteString("Once every field is collected, confirm the summary and tell the client you will relay it to admin. Keep answers under two sentences.")
	return b.String()
}

func orPending(v string) string {
	if v == "" {
		return "pending"
	}
	return v
}

// Summarize renders the transcript as "Rob: ..." / "Client: ..." lines.
func Summarize(history []Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := "Client"
		if m.Role == RoleAssistant {
			who = "Rob"
		}
		lines = append(lines, who+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
