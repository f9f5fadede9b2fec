package store

// SQL query constants organized by table.
// PostgresStore methods reference these constants.

// Offer queries.
const (
	queryListActiveOffers = `
		SELECT id, product_id, vendor_id, price::text,
		       stock_quantity, sla_in_days, handling_time_in_days
		FROM offers
		WHERE product_id = $1
		  AND active
		  AND stock_quantity > 0
		ORDER BY id`

	queryProductIDsForVendor = `
		SELECT DISTINCT product_id FROM offers
		WHERE vendor_id = $1 AND active
		ORDER BY product_id`
)

// KV queries. Expired rows are invisible to reads and removed by the purge job.
// A NULL ttl ($3) yields a NULL expires_at, which never expires.
const (
	queryKVGet = `
		SELECT value FROM buybox_kv
		WHERE key = $1
		  AND (expires_at IS NULL OR expires_at > now())`

	queryKVSet = `
		INSERT INTO buybox_kv (key, value, expires_at, updated_at)
		VALUES ($1, $2, now() + make_interval(secs => $3::double precision), now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`

	queryKVDelete = `DELETE FROM buybox_kv WHERE key = $1`

	queryKVPurgeExpired = `
		DELETE FROM buybox_kv
		WHERE expires_at IS NOT NULL AND expires_at <= now()`
)
