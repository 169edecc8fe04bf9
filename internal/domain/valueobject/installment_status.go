package valueobject

// InstallmentStatus is the display status of an installment, derived from its paid flag.
type InstallmentStatus struct {
	value string
}

var (
	InstallmentStatusPending = InstallmentStatus{value: "PENDING"}
	InstallmentStatusPaid    = InstallmentStatus{value: "PAID"}
)

// InstallmentStatusFor maps the paid flag to a status.
func InstallmentStatusFor(paid bool) InstallmentStatus {
	if paid {
		return InstallmentStatusPaid
	}
	return InstallmentStatusPending
}

func (s InstallmentStatus) String() string { return s.value }

// Label is the human text used on reminders and statements.
func (s InstallmentStatus) Label() string {
	if s == InstallmentStatusPaid {
		return "Paid"
	}
	return "Pending"
}
