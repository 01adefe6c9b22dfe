package vdisk

import "errors"

// Close saves the allocation table, flushes and closes the device. Calling
// Close more than once is a no-op. The device is closed even when the save
// fails; both errors are returned.
func (v *Volume) Close() error {
	if v == nil {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true

	saveErr := v.save()
	closeErr := v.dev.Close()
	if err := errors.Join(saveErr, closeErr); err != nil {
		return translateError(err)
	}
	v.logger.Info("volume closed")
	return nil
}
