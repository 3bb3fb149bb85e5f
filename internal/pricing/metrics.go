package pricing

import "github.com/prometheus/client_golang/prometheus"

var (
	nciHourlyRateMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nutanix_pricing_nci_hourly_rate",
		Help: "Hourly compute rate per core by product code",
	}, []string{"product_code", "name"})

	nusHourlyRateMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nutanix_pricing_nus_hourly_rate",
		Help: "Hourly files rate per TiB by product code",
	}, []string{"product_code", "name"})

	activeNciRateMetric = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nutanix_pricing_active_nci_rate",
		Help: "Hourly rate of the active compute product",
	})

	activeNusRateMetric = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nutanix_pricing_active_nus_rate",
		Help: "Hourly rate of the active files product",
	})
)

func init() {
	prometheus.MustRegister(
		nciHourlyRateMetric,
		nusHourlyRateMetric,
		activeNciRateMetric,
		activeNusRateMetric,
	)
}

// publishPricingMetrics replaces all pricing gauge children with the given
// list. The per-code vecs are reset first so deleted codes disappear.
func publishPricingMetrics(list *PriceList) {
	nciHourlyRateMetric.Reset()
	for code, rate := range list.Compute {
		nciHourlyRateMetric.WithLabelValues(code, rate.Name).Set(rate.HourlyRate)
	}
	nusHourlyRateMetric.Reset()
	for code, rate := range list.Files {
		nusHourlyRateMetric.WithLabelValues(code, rate.Name).Set(rate.HourlyRate)
	}

	var nci, nus float64
	if rate, ok := list.ActiveRate(CatalogCompute); ok {
		nci = rate.HourlyRate
	}
	if rate, ok := list.ActiveRate(CatalogFiles); ok {
		nus = rate.HourlyRate
	}
	activeNciRateMetric.Set(nci)
	activeNusRateMetric.Set(nus)
}
