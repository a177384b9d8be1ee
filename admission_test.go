// Admission and reinsertion policy tests.
package strata

import "testing"

func TestAcceptAllAdmissionAlwaysAdmits(t *testing.T) {
	a := AcceptAllAdmission{}
	a.Init(AdmissionContext{})
	if !a.Judge(1, 1<<20) {
		t.Error("AcceptAllAdmission rejected an insert")
	}
}

func TestRatedTicketAdmissionThrottlesOverBudget(t *testing.T) {
	m := &Metrics{}
	a := &RatedTicketAdmission{RateBytesPerSec: 100}
	a.Init(AdmissionContext{Metrics: m})

	if !a.Judge(1, 100) {
		t.Fatal("first judge within the seeded budget was rejected")
	}
	if a.Judge(2, 1) {
		t.Error("judge admitted a request with no observed flush progress and an empty bucket")
	}

	m.OpBytesFlush.Store(50)
	if !a.Judge(3, 40) {
		t.Error("judge rejected a request that should fit after observed flush progress")
	}
}

func TestAlwaysNoReinsertionDropsEverything(t *testing.T) {
	r := AlwaysNoReinsertion{}
	r.Init(AdmissionContext{})
	if r.Judge(1, 0) {
		t.Error("AlwaysNoReinsertion judged true")
	}
}

func TestFrequencyReinsertionThreshold(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	for i := 0; i < 5; i++ {
		p.touch(10)
	}
	r := &FrequencyReinsertion{Policy: p, Threshold: 3}
	if !r.Judge(10, 0) {
		t.Error("FrequencyReinsertion rejected a key above its threshold")
	}
	if r.Judge(20, 0) {
		t.Error("FrequencyReinsertion admitted an untouched key")
	}
}

func TestRatedTicketReinsertionUsesObservedThroughput(t *testing.T) {
	m := &Metrics{}
	r := &RatedTicketReinsertion{RateBytesPerSec: 100}
	r.Init(AdmissionContext{Metrics: m})
	if !r.Judge(1, 100) {
		t.Fatal("first judge within the seeded budget was rejected")
	}
	if r.Judge(2, 1) {
		t.Error("judge admitted a reinsertion with an empty bucket and no new samples")
	}
}
