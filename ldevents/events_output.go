package ldevents

// eventOutputFormatter converts buffered Event values and a summary snapshot into the wire
// representation sent to the events service.
type eventOutputFormatter struct {
	userFilter userFilter
	config     EventsConfiguration
}

type outputEvent = map[string]interface{}

func (f eventOutputFormatter) makeOutputEvents(events []Event, summary eventSummary) []interface{} {
	out := make([]interface{}, 0, len(events)+1)
	for _, e := range events {
		if oe := f.makeOutputEvent(e); oe != nil {
			out = append(out, oe)
		}
	}
	if len(summary.flags) > 0 {
		out = append(out, f.makeSummaryEvent(summary))
	}
	return out
}

// userOrKey returns either a scrubbed user (to be placed under "user") or a bare key (to be
// placed under "userKey"), depending on configuration and whether the caller requires the user
// to always be inlined (as debug events do).
func (f eventOutputFormatter) userOrKey(evt BaseEvent, forceInline bool) (user interface{}, key string) {
	if forceInline || f.config.InlineUsersInEvents {
		return f.userFilter.scrubUser(evt.User), ""
	}
	return nil, evt.User.Key()
}

func (f eventOutputFormatter) makeOutputEvent(evt Event) outputEvent {
	switch e := evt.(type) {
	case FeatureRequestEvent:
		kind := "feature"
		if e.Debug {
			kind = "debug"
		}
		out := outputEvent{
			"kind":         kind,
			"creationDate": e.CreationDate,
			"key":          e.Key,
			"value":        e.Value,
			"default":      e.Default,
		}
		if e.Variation.IsDefined() {
			out["variation"] = e.Variation.IntValue()
		}
		if e.Version.IsDefined() {
			out["version"] = e.Version.IntValue()
		}
		if e.PrereqOf.IsDefined() {
			out["prereqOf"] = e.PrereqOf.StringValue()
		}
		if e.TrackReason {
			out["reason"] = e.Reason
		}
		if user, key := f.userOrKey(e.BaseEvent, e.Debug); key != "" {
			out["userKey"] = key
		} else {
			out["user"] = user
		}
		return out

	case IdentifyEvent:
		return outputEvent{
			"kind":         "identify",
			"creationDate": e.CreationDate,
			"key":          e.User.Key(),
			"user":         f.userFilter.scrubUser(e.User),
		}

	case IndexEvent:
		return outputEvent{
			"kind":         "index",
			"creationDate": e.CreationDate,
			"user":         f.userFilter.scrubUser(e.User),
		}

	case CustomEvent:
		out := outputEvent{
			"kind":         "custom",
			"creationDate": e.CreationDate,
			"key":          e.Key,
		}
		if !e.Data.IsNull() {
			out["data"] = e.Data
		}
		if e.HasMetric {
			out["metricValue"] = e.MetricValue
		}
		if user, key := f.userOrKey(e.BaseEvent, false); key != "" {
			out["userKey"] = key
		} else {
			out["user"] = user
		}
		return out

	case AliasEvent:
		return outputEvent{
			"kind":                "alias",
			"creationDate":        e.CreationDate,
			"key":                 e.Key,
			"contextKind":         e.ContextKind,
			"previousKey":         e.PreviousKey,
			"previousContextKind": e.PreviousContextKind,
		}

	default:
		return nil
	}
}

type summaryCounterOutput struct {
	Variation *int          `json:"variation,omitempty"`
	Version   *int          `json:"version,omitempty"`
	Value     interface{}   `json:"value"`
	Count     int           `json:"count"`
	Unknown   bool          `json:"unknown,omitempty"`
}

type summaryFeatureOutput struct {
	Default  interface{}            `json:"default"`
	Counters []summaryCounterOutput `json:"counters"`
}

func (f eventOutputFormatter) makeSummaryEvent(summary eventSummary) outputEvent {
	features := make(map[string]summaryFeatureOutput, len(summary.flags))
	for key, fs := range summary.flags {
		counters := make([]summaryCounterOutput, 0, len(fs.counters))
		for vk, cv := range fs.counters {
			co := summaryCounterOutput{Value: cv.value, Count: cv.count, Unknown: cv.unknown}
			if vk.variation.IsDefined() {
				v := vk.variation.IntValue()
				co.Variation = &v
			}
			if vk.version.IsDefined() {
				v := vk.version.IntValue()
				co.Version = &v
			}
			counters = append(counters, co)
		}
		features[key] = summaryFeatureOutput{Default: fs.defaultValue, Counters: counters}
	}
	return outputEvent{
		"kind":      "summary",
		"startDate": summary.startDate,
		"endDate":   summary.endDate,
		"features":  features,
	}
}
