package models

import "time"

// LabelCount is one bucket of a distribution.
type LabelCount struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// DailyCount is a per-day tally.
type DailyCount struct {
	Date  time.Time `db:"day" json:"date"`
	Count int       `db:"count" json:"count"`
}

// GenderByRT splits residents of one RT by gender.
type GenderByRT struct {
	RT     string `db:"rt" json:"rt"`
	Male   int    `db:"male" json:"laki_laki"`
	Female int    `db:"female" json:"perempuan"`
}

// ResidentTotals counts residents by gender.
type ResidentTotals struct {
	Total  int `db:"total" json:"total"`
	Male   int `db:"male" json:"laki_laki"`
	Female int `db:"female" json:"perempuan"`
}

// AdminSummary is the headline dashboard for administrators.
type AdminSummary struct {
	TotalWarga       int `json:"total_warga"`
	TotalLakiLaki    int `json:"total_laki_laki"`
	TotalPerempuan   int `json:"total_perempuan"`
	PengajuanPending int `json:"pengajuan_pending"`
	TotalPengajuan   int `json:"total_pengajuan"`
	AktivitasHariIni int `json:"aktivitas_hari_ini"`
}

// RealtimeCounts holds rolling registration and activity tallies.
type RealtimeCounts struct {
	RegistrationsToday int `json:"registrations_today"`
	RegistrationsWeek  int `json:"registrations_week"`
	RegistrationsMonth int `json:"registrations_month"`
	ActivitiesToday    int `json:"activities_today"`
	ActivitiesWeek     int `json:"activities_week"`
	ActivitiesMonth    int `json:"activities_month"`
}

// Analytics is the detailed dashboard chart data.
type Analytics struct {
	DailyRegistrations  []DailyCount   `json:"daily_registrations"`
	RTDistribution      []LabelCount   `json:"rt_distribution"`
	AgeGroups           []LabelCount   `json:"age_groups"`
	Education           []LabelCount   `json:"education"`
	MaritalStatus       []LabelCount   `json:"marital_status"`
	ActivityTrend       []DailyCount   `json:"activity_trend"`
	ChangeRequestStatus []LabelCount   `json:"change_request_status"`
	Realtime            RealtimeCounts `json:"realtime"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// PublicStats backs the unauthenticated landing page.
type PublicStats struct {
	DataAkurat          float64      `json:"data_akurat"`
	RTRWTerhubung       int          `json:"rt_rw_terhubung"`
	AktifHarian         int          `json:"aktif_harian"`
	PendudukAktif       int          `json:"penduduk_aktif"`
	UsiaProduktif       int          `json:"usia_produktif"`
	UsiaProduktifPersen float64      `json:"usia_produktif_persen"`
	PembaruanMingguIni  int          `json:"pembaruan_minggu_ini"`
	GenderByRT          []GenderByRT `json:"gender_by_rt"`
}
