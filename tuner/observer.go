package tuner

// Observer receives progress as it happens. Sessions of a batch run
// concurrently, so implementations must be safe for concurrent use.
type Observer interface {
	SessionStarted(sessionID string, fn FunctionInformation)
	MeasurementRecorded(sessionID string, m Measurement)
	SessionFinished(res *TuningResult, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) SessionStarted(string, FunctionInformation) {}
func (NopObserver) MeasurementRecorded(string, Measurement) {}
func (NopObserver) SessionFinished(*TuningResult, error) {}

// Observers fans events out to every member in order.
type Observers []Observer

func (o Observers) SessionStarted(sessionID string, fn FunctionInformation) {
	for _, obs := range o {
		obs.SessionStarted(sessionID, fn)
	}
}

func (o Observers) MeasurementRecorded(sessionID string, m Measurement) {
	for _, obs := range o {
		obs.MeasurementRecorded(sessionID, m)
	}
}

func (o Observers) SessionFinished(res *TuningResult, err error) {
	for _, obs := range o {
		obs.SessionFinished(res, err)
	}
}
