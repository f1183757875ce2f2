// Package model holds the Strava payloads, webhook events and generated posts
// exchanged by the pipeline.
package model

import "time"

// MetaAthlete is the athlete reference embedded in an activity.
type MetaAthlete struct {
	ID            int64 `json:"id"`
	ResourceState int   `json:"resource_state"`
}

// PolylineMap is the route of an activity.
type PolylineMap struct {
	ID              string  `json:"id"`
	Polyline        *string `json:"polyline"`
	SummaryPolyline *string `json:"summary_polyline"`
}

type PhotosSummary struct {
	Count   int            `json:"count"`
	Primary map[string]any `json:"primary"`
}

type SummaryGear struct {
	ID            string  `json:"id"`
	ResourceState int     `json:"resource_state"`
	Primary       bool    `json:"primary"`
	Name          string  `json:"name"`
	Distance      float64 `json:"distance"`
}

type DetailedSegmentEffort struct {
	ID               int64     `json:"id"`
	ResourceState    int       `json:"resource_state"`
	Name             string    `json:"name"`
	ElapsedTime      int       `json:"elapsed_time"`
	MovingTime       int       `json:"moving_time"`
	StartDate        time.Time `json:"start_date"`
	StartDateLocal   time.Time `json:"start_date_local"`
	Distance         float64   `json:"distance"`
	StartIndex       int       `json:"start_index"`
	EndIndex         int       `json:"end_index"`
	AverageCadence   *float64  `json:"average_cadence"`
	AverageWatts     *float64  `json:"average_watts"`
	DeviceWatts      *bool     `json:"device_watts"`
	AverageHeartrate *float64  `json:"average_heartrate"`
	MaxHeartrate     *float64  `json:"max_heartrate"`
}

type Split struct {
	Distance            float64 `json:"distance"`
	ElapsedTime         int     `json:"elapsed_time"`
	ElevationDifference float64 `json:"elevation_difference"`
	MovingTime          int     `json:"moving_time"`
	Split               int     `json:"split"`
	AverageSpeed        float64 `json:"average_speed"`
	PaceZone            *int    `json:"pace_zone"`
}

type Lap struct {
	ID                 int64     `json:"id"`
	ResourceState      int       `json:"resource_state"`
	Name               string    `json:"name"`
	ElapsedTime        int       `json:"elapsed_time"`
	MovingTime         int       `json:"moving_time"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Distance           float64   `json:"distance"`
	StartIndex         int       `json:"start_index"`
	EndIndex           int       `json:"end_index"`
	LapIndex           int       `json:"lap_index"`
	MaxSpeed           float64   `json:"max_speed"`
	AverageSpeed       float64   `json:"average_speed"`
	AverageCadence     *float64  `json:"average_cadence"`
	AverageWatts       *float64  `json:"average_watts"`
	AverageHeartrate   *float64  `json:"average_heartrate"`
	MaxHeartrate       *float64  `json:"max_heartrate"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
}

// ActivityRecord mirrors Strava's DetailedActivity. It is decoded fresh on
// every fetch and never cached. Optional attributes are pointers so that the
// serialized record carries explicit nulls, like the platform's own payload.
type ActivityRecord struct {
	ID                 int64                   `json:"id" validate:"gt=0"`
	ResourceState      int                     `json:"resource_state"`
	ExternalID         *string                 `json:"external_id"`
	UploadID           *int64                  `json:"upload_id"`
	Athlete            MetaAthlete             `json:"athlete"`
	Name               string                  `json:"name"`
	Distance           float64                 `json:"distance" validate:"gte=0"`
	MovingTime         int                     `json:"moving_time" validate:"gte=0"`
	ElapsedTime        int                     `json:"elapsed_time" validate:"gte=0"`
	TotalElevationGain float64                 `json:"total_elevation_gain" validate:"gte=0"`
	Type               string                  `json:"type"`
	SportType          string                  `json:"sport_type"`
	StartDate          time.Time               `json:"start_date"`
	StartDateLocal     time.Time               `json:"start_date_local"`
	Timezone           string                  `json:"timezone"`
	UTCOffset          float64                 `json:"utc_offset"`
	LocationCity       *string                 `json:"location_city"`
	LocationState      *string                 `json:"location_state"`
	LocationCountry    *string                 `json:"location_country"`
	StartLatLng        []float64               `json:"start_latlng"`
	EndLatLng          []float64               `json:"end_latlng"`
	AchievementCount   int                     `json:"achievement_count" validate:"gte=0"`
	KudosCount         int                     `json:"kudos_count" validate:"gte=0"`
	CommentCount       int                     `json:"comment_count" validate:"gte=0"`
	AthleteCount       int                     `json:"athlete_count" validate:"gte=0"`
	PhotoCount         int                     `json:"photo_count" validate:"gte=0"`
	Map                PolylineMap             `json:"map"`
	Trainer            bool                    `json:"trainer"`
	Commute            bool                    `json:"commute"`
	Manual             bool                    `json:"manual"`
	Private            bool                    `json:"private"`
	Flagged            bool                    `json:"flagged"`
	WorkoutType        *int                    `json:"workout_type"`
	UploadIDStr        *string                 `json:"upload_id_str"`
	AverageSpeed       float64                 `json:"average_speed" validate:"gte=0"`
	MaxSpeed           float64                 `json:"max_speed" validate:"gte=0"`
	HasKudoed          bool                    `json:"has_kudoed"`
	HideFromHome       bool                    `json:"hide_from_home"`
	GearID             *string                 `json:"gear_id"`
	Kilojoules         *float64                `json:"kilojoules"`
	AverageWatts       *float64                `json:"average_watts"`
	DeviceWatts        *bool                   `json:"device_watts"`
	MaxWatts           *int                    `json:"max_watts"`
	WeightedAvgWatts   *int                    `json:"weighted_average_watts"`
	Description        *string                 `json:"description"`
	Photos             *PhotosSummary          `json:"photos"`
	Gear               *SummaryGear            `json:"gear"`
	Calories           *float64                `json:"calories"`
	SegmentEfforts     []DetailedSegmentEffort `json:"segment_efforts"`
	DeviceName         *string                 `json:"device_name"`
	EmbedToken         *string                 `json:"embed_token"`
	SplitsMetric       []Split                 `json:"splits_metric"`
	SplitsStandard     []Split                 `json:"splits_standard"`
	Laps               []Lap                   `json:"laps"`
	BestEfforts        []DetailedSegmentEffort `json:"best_efforts"`

	PRCount                    *int     `json:"pr_count"`
	TotalPhotoCount            *int     `json:"total_photo_count"`
	HasHeartrate               *bool    `json:"has_heartrate"`
	AverageHeartrate           *float64 `json:"average_heartrate"`
	MaxHeartrate               *float64 `json:"max_heartrate"`
	HeartrateOptOut            *bool    `json:"heartrate_opt_out"`
	DisplayHideHeartrateOption *bool    `json:"display_hide_heartrate_option"`
	ElevHigh                   *float64 `json:"elev_high"`
	ElevLow                    *float64 `json:"elev_low"`
	AverageCadence             *float64 `json:"average_cadence"`
	AverageTemp                *int     `json:"average_temp"`
	PerceivedExertion          *int     `json:"perceived_exertion"`
	PreferPerceivedExertion    *bool    `json:"prefer_perceived_exertion"`
	SegmentLeaderboardOptOut   *bool    `json:"segment_leaderboard_opt_out"`
	LeaderboardOptOut          *bool    `json:"leaderboard_opt_out"`
}
