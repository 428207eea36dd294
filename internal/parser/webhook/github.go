package webhook

import (
	"webhookrecv/internal/capture"
)

// ParseGitHub summarizes push, pull_request and issues events.
// Other events only report their name.
func ParseGitHub(headers map[string]string, body capture.Payload) Summary {
	event, ok := headerValue(headers, githubEventHeader)
	if !ok || event == "" {
		return nil
	}

	obj := structured(body)
	if obj == nil {
		return nil
	}

	parsed := Summary{"event": event}

	switch event {
	case "push":
		parsed["repository"] = getValue(obj, "repository.full_name")
		parsed["ref"] = obj["ref"]
		parsed["commits"] = getLen(obj, "commits")
		parsed["pusher"] = getValue(obj, "pusher.name")

	case "pull_request":
		pr := getMap(obj, "pull_request")
		parsed["action"] = obj["action"]
		parsed["pr_number"] = pr["number"]
		parsed["pr_title"] = pr["title"]
		parsed["pr_author"] = getValue(pr, "user.login")

	case "issues":
		issue := getMap(obj, "issue")
		parsed["action"] = obj["action"]
		parsed["issue_number"] = issue["number"]
		parsed["issue_title"] = issue["title"]
	}

	return parsed
}
