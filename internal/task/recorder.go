package task

import "errors"

// MultiRecorder fans a finished trial out to several recorders. Every
// recorder sees the trial even when an earlier one fails; failures come back
// joined so the caller can log them as a single warning.
type MultiRecorder []Recorder

// Record implements Recorder.
func (m MultiRecorder) Record(t Trial) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
