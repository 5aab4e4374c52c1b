package postgres

// SQL for lead, pixel, google ads tag and delivery log storage.

// leadColumns is the canonical select order; scanLeadRow depends on it.
const leadColumns = `
	id, name, email, phone, phone_digits, phone_needs_review,
	service_type, bedrooms, bathrooms,
	eircode, address_line1, address_line2, city, county, country,
	page_url, referrer, user_agent, ip_address,
	fbclid, fbp, fbc, gclid, gbraid, wbraid,
	utm_source, utm_medium, utm_campaign, utm_content, utm_term,
	contacted_at, scheduled_for, scheduled_at, scheduled_value, paid_value, paid_at,
	lead_event_id, lead_event_sent, lead_event_response,
	contact_event_id, contact_event_sent, contact_event_response,
	schedule_event_id, schedule_event_sent, schedule_event_response,
	purchase_event_id, purchase_event_sent, purchase_event_response,
	created_at`

const (
	queryInsertLead = `
		INSERT INTO leads (
			name, email, phone, phone_digits, phone_needs_review,
			service_type, bedrooms, bathrooms,
			eircode, address_line1, address_line2, city, county, country,
			page_url, referrer, user_agent, ip_address,
			fbclid, fbp, fbc, gclid, gbraid, wbraid,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			lead_event_id
		)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24,
			$25, $26, $27, $28, $29,
			$30
		)
		RETURNING id, created_at
	`

	queryGetLeadByID = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	queryListLeadsSince = `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE created_at >= $1
		ORDER BY id DESC
		LIMIT $2
	`

	// queryMarkContacted refreshes contact details without clobbering stored
	// values with blanks, and keeps the first contact timestamp.
	queryMarkContacted = `
		UPDATE leads SET
			contacted_at = COALESCE(contacted_at, $2),
			contact_event_id = COALESCE(NULLIF($3, ''), contact_event_id),
			name = COALESCE(NULLIF($4, ''), name),
			email = COALESCE(NULLIF($5, ''), email),
			phone = COALESCE(NULLIF($6, ''), phone),
			phone_digits = COALESCE(NULLIF($7, ''), phone_digits),
			service_type = COALESCE(NULLIF($8, ''), service_type),
			fbp = COALESCE(NULLIF($9, ''), fbp),
			fbc = COALESCE(NULLIF($10, ''), fbc),
			fbclid = COALESCE(NULLIF($11, ''), fbclid),
			page_url = COALESCE(NULLIF($12, ''), page_url),
			user_agent = COALESCE(NULLIF($13, ''), user_agent),
			ip_address = COALESCE(NULLIF($14, ''), ip_address)
		WHERE id = $1
	`

	querySetSchedule = `
		UPDATE leads SET
			scheduled_for = NULLIF($2, '')::date,
			scheduled_value = $3,
			scheduled_at = COALESCE(scheduled_at, NOW())
		WHERE id = $1
	`

	querySetPurchase = `
		UPDATE leads SET
			paid_value = $2,
			paid_at = $3
		WHERE id = $1
	`
)

// Stage-derivation predicates, shared by listing and resend selection.
// Purchase wins over schedule, schedule over contact.
const (
	predStageLead     = `(contacted_at IS NULL AND scheduled_for IS NULL AND paid_value <= 0)`
	predStageContact  = `(contacted_at IS NOT NULL AND scheduled_for IS NULL AND paid_value <= 0)`
	predStageSchedule = `(scheduled_for IS NOT NULL AND paid_value <= 0)`
	predStagePurchase = `(paid_value > 0)`
)

const (
	queryListPixels = `
		SELECT id, pixel_id, name, access_token, is_active, created_at
		FROM pixels
		ORDER BY is_active DESC, id DESC
	`

	queryListActivePixels = `
		SELECT id, pixel_id, name, access_token, is_active, created_at
		FROM pixels
		WHERE is_active = TRUE
		ORDER BY id DESC
	`

	queryInsertPixel = `
		INSERT INTO pixels (pixel_id, name, access_token, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	queryGetPixelByID = `
		SELECT id, pixel_id, name, access_token, is_active, created_at
		FROM pixels
		WHERE id = $1
	`

	querySetPixelActive    = `UPDATE pixels SET is_active = $2 WHERE id = $1`
	queryDeactivatePixels  = `UPDATE pixels SET is_active = FALSE`
	queryUpdatePixelToken  = `UPDATE pixels SET access_token = $2 WHERE id = $1`
	queryDeletePixel       = `DELETE FROM pixels WHERE id = $1`
	queryCountActivePixels = `SELECT COUNT(*) FROM pixels WHERE is_active = TRUE`
	queryCountPixels       = `SELECT COUNT(*) FROM pixels`

	// queryActivateLatestPixel reactivates the newest credential set; used
	// by auto-recovery when nothing is active.
	queryActivateLatestPixel = `
		UPDATE pixels SET is_active = TRUE
		WHERE id = (SELECT id FROM pixels ORDER BY id DESC LIMIT 1)
		RETURNING id, pixel_id, name, access_token, is_active, created_at
	`
)

const (
	queryListGoogleAds = `
		SELECT id, tag_name, conversion_id, lead_label, contact_label, schedule_label, is_active, created_at
		FROM google_ads_tags
		ORDER BY is_active DESC, id DESC
	`

	queryGetActiveGoogleAds = `
		SELECT id, tag_name, conversion_id, lead_label, contact_label, schedule_label, is_active, created_at
		FROM google_ads_tags
		WHERE is_active = TRUE
		ORDER BY id DESC
		LIMIT 1
	`

	queryInsertGoogleAds = `
		INSERT INTO google_ads_tags (tag_name, conversion_id, lead_label, contact_label, schedule_label, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	queryDeactivateGoogleAds  = `UPDATE google_ads_tags SET is_active = FALSE`
	queryActivateGoogleAds    = `UPDATE google_ads_tags SET is_active = TRUE WHERE id = $1`
	queryDeleteGoogleAds      = `DELETE FROM google_ads_tags WHERE id = $1`
	queryCountActiveGoogleAds = `SELECT COUNT(*) FROM google_ads_tags WHERE is_active = TRUE`
)

const queryAppendDeliveryLog = `
	INSERT INTO delivery_log (logged_at, event_name, event_id, pixel_id, http_status, ok, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`
