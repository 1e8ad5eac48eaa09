package scheduler

// ExportedFire exposes the private fire method for external tests.
func (s *Scheduler) ExportedFire(name string) {
	s.fire(name)
}
