package bus

import "errors"

// Tee returns a Publisher that forwards to every publisher in order.
// All publishers are attempted; errors are joined.
func Tee(pubs ...Publisher) Publisher {
	return tee(pubs)
}

type tee []Publisher

func (t tee) Publish(u Update) error {
	var errs []error
	for _, p := range t {
		if err := p.Publish(u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) Delete(name string) error {
	var errs []error
	for _, p := range t {
		if err := p.Delete(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, p := range t {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
