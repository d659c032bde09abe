package email

import "fmt"

// Slot is one of the three image positions in the assembled email.
type Slot string

const (
	SlotHeader Slot = "header"
	SlotBody   Slot = "body"
	SlotFooter Slot = "footer"
)

// Slots returns every slot in rendering order.
func Slots() []Slot {
	return []Slot{SlotHeader, SlotBody, SlotFooter}
}

// ParseSlot converts a form field or flag name into a Slot.
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotHeader, SlotBody, SlotFooter:
		return Slot(s), nil
	default:
		return "", fmt.Errorf("unknown slot %q", s)
	}
}

// Image is raw image content waiting to be uploaded into a slot.
type Image struct {
	Slot     Slot
	Filename string
	Data     []byte
}

// RemoteImage is a publicly reachable copy of an uploaded Image.
type RemoteImage struct {
	Slot Slot
	URL  string
}
