package version

const Value = "0.3.1"

func ServerUserAgent() string {
	return "veridoc/" + Value + " (document fraud risk engine)"
}
