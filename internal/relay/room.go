package relay

// room pairs one admin connection with one user connection. An empty ConnID
// means the slot is vacant. offerPending is true between a forwarded offer
// and its matching answer.
type room struct {
	admin        ConnID
	user         ConnID
	offerPending bool
}

func (rm *room) full() bool {
	return rm.admin != "" && rm.user != ""
}

func (rm *room) empty() bool {
	return rm.admin == "" && rm.user == ""
}

// occupants returns the connections currently holding a slot.
func (rm *room) occupants() []ConnID {
	var out []ConnID
	if rm.admin != "" {
		out = append(out, rm.admin)
	}
	if rm.user != "" {
		out = append(out, rm.user)
	}
	return out
}
