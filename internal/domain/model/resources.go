package model

import "encoding/json"

// Link is one reference resource shown alongside the explainer video.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ResourceLinks is the payload persisted as the job's JSON sidecar and
// returned to pollers once a job completes.
type ResourceLinks struct {
	Video       Link   `json:"video"`
	RefVideos   []Link `json:"ref_videos"`
	RefArticles []Link `json:"ref_articles"`
}

// Sidecar wraps ResourceLinks in the on-wire envelope.
type Sidecar struct {
	Resources ResourceLinks `json:"resources"`
}

// VideoKey and SidecarKey name the two artifacts a job produces.
func VideoKey(jobKey string) string { return jobKey + ".mp4" }

func SidecarKey(jobKey string) string { return jobKey + ".json" }

func MarshalSidecar(sc *Sidecar) ([]byte, error) {
	if sc.Resources.RefVideos == nil {
		sc.Resources.RefVideos = []Link{}
	}
	if sc.Resources.RefArticles == nil {
		sc.Resources.RefArticles = []Link{}
	}
	return json.Marshal(sc)
}

func ParseSidecar(data []byte) (*Sidecar, error) {
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// SidecarTitle builds the display title for a finished video from its
// prompt, truncated the way downstream consumers expect.
func SidecarTitle(prompt string) string {
	const max = 50
	r := []rune(prompt)
	if len(r) > max {
		r = r[:max]
	}
	return "Explanation: " + string(r)
}
