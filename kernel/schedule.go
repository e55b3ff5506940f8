// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// SampleSchedule decides, for iteration k of a loop that runs total
// iterations and has slots history slots, whether k should be sampled into
// history and returns the slot to write (§4.7 History/Reporting): every
// iteration with k % stride == 0, plus k == 0 and k == total-1, are sampled;
// stride = total/(slots-1) (at least 1), so MwPGP's 21 slots give
// max_iter/20 and GPMO's nhistory+1 slots give K/nhistory — mirroring the
// original's "fairly convoluted way to print every ~K/nhistory iterations".
type SampleSchedule struct {
	total, slots, stride int
	next                 int // next slot to hand out; NextSlot caps the returned slot at slots-1
}

// NewSampleSchedule builds a schedule for a loop of the given length and
// number of available history slots.
func NewSampleSchedule(total, slots int) *SampleSchedule {
	stride := 1
	if slots > 1 && total > slots-1 {
		stride = total / (slots - 1)
	}
	if stride < 1 {
		stride = 1
	}
	return &SampleSchedule{total: total, slots: slots, stride: stride}
}

// ShouldSample reports whether iteration k should be sampled.
func (s *SampleSchedule) ShouldSample(k int) bool {
	return k%s.stride == 0 || k == 0 || k == s.total-1
}

// NextSlot returns the slot to write this sample into and advances the
// counter, capping at the last available slot so a write can never overflow
// the pre-allocated history buffers (§4.7: "Overflow beyond the last slot
// must be prevented by capping the counter").
func (s *SampleSchedule) NextSlot() int {
	slot := s.next
	if slot > s.slots-1 {
		slot = s.slots - 1
	}
	s.next++
	return slot
}
