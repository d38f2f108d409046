package engine

// IsAnomalous reports whether the calibrated value v falls outside the
// expected range of readingType.
func (s *Store) IsAnomalous(readingType string, v float64) (bool, error) {
	r, err := s.Range(readingType)
	if err != nil {
		return false, err
	}
	return !r.Contains(v), nil
}
