package models

// OptionSlot identifies one of the four answer fields of a Question.
type OptionSlot int

const (
	NoOption OptionSlot = iota
	Option1
	Option2
	Option3
	Option4
)

// OptionSlots lists the valid slots in display order.
var OptionSlots = []OptionSlot{Option1, Option2, Option3, Option4}

var slotKeys = map[OptionSlot]string{
	Option1: "option1",
	Option2: "option2",
	Option3: "option3",
	Option4: "option4",
}

// ParseOptionSlot maps a form key such as "option3" to its slot.
func ParseOptionSlot(key string) (OptionSlot, bool) {
	for slot, k := range slotKeys {
		if k == key {
			return slot, true
		}
	}
	return NoOption, false
}

// Key returns the form key of the slot, or "" for NoOption.
func (s OptionSlot) Key() string {
	return slotKeys[s]
}

// OptionText returns the text stored in the given slot.
func (q Question) OptionText(slot OptionSlot) (string, bool) {
	switch slot {
	case Option1:
		return q.Option1, true
	case Option2:
		return q.Option2, true
	case Option3:
		return q.Option3, true
	case Option4:
		return q.Option4, true
	}
	return "", false
}

type OptionChoice struct {
	Slot    OptionSlot
	Key     string
	Text    string
	Correct bool
}

// Choices returns the four options with the correct one marked.
func (q Question) Choices() []OptionChoice {
	out := make([]OptionChoice, 0, len(OptionSlots))
	for _, slot := range OptionSlots {
		text, _ := q.OptionText(slot)
		out = append(out, OptionChoice{
			Slot:    slot,
			Key:     slot.Key(),
			Text:    text,
			Correct: text == q.CorrectOption,
		})
	}
	return out
}

// CorrectSlot returns the first slot whose text equals the stored answer.
// NoOption means the answer no longer matches any option.
func (q Question) CorrectSlot() OptionSlot {
	for _, slot := range OptionSlots {
		if text, _ := q.OptionText(slot); text == q.CorrectOption {
			return slot
		}
	}
	return NoOption
}

// StaleAnswer reports whether the stored answer text matches none of the options.
func (q Question) StaleAnswer() bool {
	return q.CorrectSlot() == NoOption
}

// IsCorrect resolves a submitted slot key and compares it with the stored answer.
func (q Question) IsCorrect(key string) bool {
	slot, ok := ParseOptionSlot(key)
	if !ok {
		return false
	}
	text, _ := q.OptionText(slot)
	return text == q.CorrectOption
}
