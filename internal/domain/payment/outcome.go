package payment

// OutcomeKind is the normalized settlement verdict every provider adapter reports.
type OutcomeKind string

const (
	OutcomeSuccessful OutcomeKind = "successful"
	OutcomePending    OutcomeKind = "pending"
	OutcomeFailed     OutcomeKind = "failed"
)

// FollowUpKind says what must happen before a pending charge can settle.
type FollowUpKind string

const (
	FollowUpRedirect FollowUpKind = "redirect"
	FollowUpPIN      FollowUpKind = "pin"
	FollowUpAVS      FollowUpKind = "avs"
	FollowUpOTP      FollowUpKind = "otp"
	FollowUpWebhook  FollowUpKind = "webhook"
	FollowUpReverify FollowUpKind = "reverify"
)

// Interactive reports whether the customer must submit something to continue.
func (k FollowUpKind) Interactive() bool {
	return k == FollowUpPIN || k == FollowUpAVS || k == FollowUpOTP
}

type FollowUp struct {
	Kind        FollowUpKind
	RedirectURL string
	Fields      []string
	Message     string
	// FlowRef is the provider reference the next interactive step must quote.
	FlowRef string
}

// Outcome is Successful, Pending{FollowUp} or Failed{Reason}. Amount and Currency
// carry what the provider says was settled when it reports them.
type Outcome struct {
	Kind        OutcomeKind
	ProviderRef string
	FollowUp    *FollowUp
	Reason      string
	Amount      int64
	Currency    string
}

func Successful(providerRef string) Outcome {
	return Outcome{Kind: OutcomeSuccessful, ProviderRef: providerRef}
}

func Pending(providerRef string, followUp FollowUp) Outcome {
	return Outcome{Kind: OutcomePending, ProviderRef: providerRef, FollowUp: &followUp}
}

func Failed(providerRef, reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, ProviderRef: providerRef, Reason: reason}
}

// WithSettlement records the amount the provider reports as charged.
func (o Outcome) WithSettlement(amount int64, currency string) Outcome {
	o.Amount = amount
	o.Currency = currency
	return o
}

func (o Outcome) TargetStatus() Status {
	switch o.Kind {
	case OutcomeSuccessful:
		return StatusSuccessful
	case OutcomeFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}
