package model

// JobStatus is the lifecycle state of a Job.
type JobStatus string

// ApplicationStatus is the lifecycle state of an Application.
type ApplicationStatus string

// PaymentStatus is the state of a money movement.
type PaymentStatus string

// EarningStatus is the payout state of a worker's Earning.
type EarningStatus string

const (
	JobOpen          JobStatus = "open"
	JobAssigned      JobStatus = "assigned"
	JobInProgress    JobStatus = "in_progress"
	JobCompleted     JobStatus = "completed"
	JobCanceled      JobStatus = "canceled"
	JobPaymentFailed JobStatus = "payment_failed"
)

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationCompleted ApplicationStatus = "completed"
	ApplicationCancelled ApplicationStatus = "cancelled"
)

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentReversed  PaymentStatus = "reversed"
)

const (
	EarningPending  EarningStatus = "pending"
	EarningPaid     EarningStatus = "paid"
	EarningFailed   EarningStatus = "failed"
	EarningReversed EarningStatus = "reversed"
)

// Transition tables. Every status mutation in the service layer is checked
// against these before any write happens.
var (
	jobTransitions = map[JobStatus][]JobStatus{
		JobOpen:          {JobAssigned, JobCanceled},
		JobAssigned:      {JobInProgress, JobCanceled},
		JobInProgress:    {JobCompleted, JobCanceled},
		JobCompleted:     {JobPaymentFailed},
		JobPaymentFailed: {JobCompleted},
	}

	applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
		ApplicationPending:  {ApplicationAccepted, ApplicationRejected},
		ApplicationAccepted: {ApplicationCompleted, ApplicationCancelled},
	}

	paymentTransitions = map[PaymentStatus][]PaymentStatus{
		PaymentPending:   {PaymentCompleted, PaymentFailed},
		PaymentCompleted: {PaymentReversed, PaymentFailed},
		PaymentFailed:    {PaymentCompleted}, // late success from the provider
	}

	earningTransitions = map[EarningStatus][]EarningStatus{
		EarningPending: {EarningPaid, EarningFailed},
		EarningFailed:  {EarningPaid, EarningFailed},
		EarningPaid:    {EarningReversed, EarningFailed},
	}
)

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobAssigned, JobInProgress, JobCompleted, JobCanceled, JobPaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the job transition table permits s -> next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return allowed(jobTransitions, s, next)
}

// Valid reports whether s is a known application status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected, ApplicationCompleted, ApplicationCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the application transition table permits s -> next.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return allowed(applicationTransitions, s, next)
}

// Active reports whether the application still blocks the worker from
// applying to the same job again.
func (s ApplicationStatus) Active() bool {
	return s == ApplicationPending || s == ApplicationAccepted
}

// CanTransitionTo reports whether the payment transition table permits s -> next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return allowed(paymentTransitions, s, next)
}

// CanTransitionTo reports whether the earning transition table permits s -> next.
func (s EarningStatus) CanTransitionTo(next EarningStatus) bool {
	return allowed(earningTransitions, s, next)
}

// ActiveApplicationStatuses lists statuses that count toward the one active
// application per worker and job rule.
var ActiveApplicationStatuses = []ApplicationStatus{ApplicationPending, ApplicationAccepted}
