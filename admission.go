// Admission gates an insert before it reaches the writer. Modeled as a
// small interface with tagged variants rather than inheritance, per
// spec §9's guidance for pluggable policies.
package strata

// AdmissionContext is the explicit handle an AdmissionPolicy's Init
// receives, giving it read access to the metrics a rated-ticket variant
// needs without reaching for global state (spec §9).
type AdmissionContext struct {
	Metrics *Metrics
}

// AdmissionPolicy decides whether an insert is allowed to proceed.
type AdmissionPolicy interface {
	Init(ctx AdmissionContext)
	Judge(keyHash uint64, size int) bool
	OnInsert(keyHash uint64, admitted bool)
	OnDrop(keyHash uint64)
}

// AcceptAllAdmission admits every insert unconditionally.
type AcceptAllAdmission struct{}

func (AcceptAllAdmission) Init(AdmissionContext)  {}
func (AcceptAllAdmission) Judge(uint64, int) bool { return true }
func (AcceptAllAdmission) OnInsert(uint64, bool)  {}
func (AcceptAllAdmission) OnDrop(uint64)          {}

// RatedTicketAdmission caps the rate of admitted bytes against observed
// flush throughput rather than wall-clock time (spec §4.E).
type RatedTicketAdmission struct {
	RateBytesPerSec float64

	metrics *Metrics
	ticket  *RatedTicket
}

func (a *RatedTicketAdmission) Init(ctx AdmissionContext) {
	a.metrics = ctx.Metrics
	a.ticket = NewRatedTicket(a.RateBytesPerSec)
}

func (a *RatedTicketAdmission) Judge(keyHash uint64, size int) bool {
	var observed uint64
	if a.metrics != nil {
		observed = a.metrics.OpBytesFlush.Load()
	}
	return a.ticket.probe(observed, float64(size))
}

func (a *RatedTicketAdmission) OnInsert(uint64, bool) {}
func (a *RatedTicketAdmission) OnDrop(uint64)         {}
