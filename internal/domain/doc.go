// Package domain models the data behind station-level crime risk forecasts
// for the Mexico City metro.
//
// # Data Sources
//
// Three read-only feeds are consumed, each exported from the city's open data
// portal and loaded into SQLite or PostgreSQL by an external loader:
//
//	daily_affluence(key, fecha, afluencia)       one row per station-day of ridership
//	lines_metro(num, nombre, linea, lat, lon)     one row per physical station
//	crimes_clean(fecha_hecho, hora_hecho, latitud, longitud,
//	             delito, categoria_delito, subcategoria, tipo)
//
// # Feed Conventions
//
// Station keys:
//
//	The ridership key and the station "num" column are the same identifier.
//	Ridership exports sometimes carry it as a float ("12.0"); it is reduced to
//	its integer text form before joining. Keys are then canonicalized (lower
//	case ASCII, underscores) so that free-text queries and keys compare equal.
//
// Incident time:
//
//	fecha_hecho holds the calendar date; hora_hecho holds "HH:MM:SS", "HH:MM"
//	or occasionally only an hour. Incidents with no readable hour still count
//	toward daily totals but are excluded from hour-of-day distributions.
//
// Categories:
//
//	The first present column among delito, categoria_delito, subcategoria and
//	tipo becomes the category label, lower-cased and folded to ASCII. Rows with
//	none are labeled "desconocido".
//
// Coordinates:
//
//	Incidents outside the city bounding box (lat 19.0-19.6, lon -99.4 to -98.9)
//	or with unparsable coordinates are discarded at ingestion.
//
// Encoding:
//
//	Station names frequently arrive double-encoded ("CuauhtÃ©moc"). A fixed
//	repair table restores the accented letters before normalization. See
//	[RepairMojibake].
//
// # Risk Tiers
//
// Weekly expected counts are turned into the probability of at least one
// incident, 1 - e^(-λ), and labeled:
//
//	<15% Bajo | <35% Medio | >=35% Alto
package domain
