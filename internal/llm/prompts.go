package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/raine/vintifi/internal/studio"
)

func prompt(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

const qualityMandate = `OUTPUT REQUIREMENTS: Deliver the highest possible resolution and quality, as if shot by a professional fashion photographer on a full-frame camera with a prime lens. Keep fabric texture, stitching and hardware pixel sharp.`

const noText = `Absolutely no text, watermarks, labels, captions, logos, signatures or any other written characters anywhere in the image.`

const garmentPreserve = `GARMENT INTEGRITY: Preserve every detail of the garment exactly. Logos, prints, embroidery, stitching, buttons, zips, tags, fabric weave and colour stay intact and unobscured. Do not change the garment type, neckline or silhouette. Do not add a hood.`

// humanise turns an unknown option value into prompt text.
func humanise(v string) string {
	return strings.ReplaceAll(v, "_", " ")
}

func pick(options map[string]string, value, fallback string) string {
	if s, ok := options[value]; ok {
		return s
	}
	if value != "" {
		return humanise(value)
	}
	return options[fallback]
}

func garmentIdentity(garmentContext string) string {
	garmentContext = strings.TrimSpace(garmentContext)
	if garmentContext == "" {
		return ""
	}
	return fmt.Sprintf("\n\nGARMENT IDENTITY: The garment in this image is: %s. Reproduce this exact type of garment and do not substitute a similar one.", garmentContext)
}

var lifestyleScenes = map[string]string{
	"living_room":   "a styled contemporary living room with a neutral stone sofa in soft focus, a monstera plant in afternoon light and warm oak flooring",
	"studio_white":  "a professional studio with a seamless white paper sweep lit evenly by two large softboxes",
	"studio_grey":   "a smooth mid-grey gradient studio backdrop with three-point lighting",
	"marble":        "a white Carrara marble surface with delicate grey veining under soft overhead light",
	"linen":         "a natural Belgian linen surface with gentle weave texture and warm side light",
	"bedroom":       "a stylish bedroom with a full-length mirror and soft morning window light",
	"kitchen":       "a bright kitchen counter with white marble, a coffee press and fresh flowers in Sunday morning light",
	"dressing_room": "a personal dressing room with a clothing rail and warm Edison bulb lighting",
	"park":          "a park at golden hour with green foliage rendered as creamy bokeh and warm rim light",
	"city_street":   "a contemporary city street with blurred architecture under soft overcast daylight",
	"beach":         "a summer beach with golden sand and a soft-focus turquoise sea",
	"brick_wall":    "an exposed brick wall with warm directional accent lighting",
	"autumn":        "an autumn setting with scattered golden and russet leaves under soft diffused light",
}

var flatlayStyles = map[string]string{
	"clean_white": "Clean minimal flat-lay on a pure white background (#FFFFFF) with a subtle natural drop shadow. No props.",
	"accessories": "Styled editorial flat-lay with a few tasteful complementary accessories such as sunglasses, a leather belt or a watch, kept secondary to the garment.",
	"seasonal":    "Seasonal flat-lay with a few natural props such as eucalyptus sprigs or autumn leaves around the garment.",
	"denim":       "Flat-lay on a rich indigo denim fabric background shot directly overhead.",
	"wood":        "Flat-lay on a warm honey-toned oak surface shot directly overhead with soft even light.",
}

var mannequinTypes = map[string]string{
	"invisible":  "an invisible (ghost) mannequin so the garment appears worn by an invisible body, with the inner neckline and back visible",
	"headless":   "a headless matte white display mannequin",
	"dress_form": "a classic tailor's dress form on a wooden stand",
	"full":       "a full-figure matte white display mannequin",
}

var mannequinLightings = map[string]string{
	"natural":  "soft natural window light from camera left",
	"studio":   "clean even softbox studio lighting",
	"dramatic": "directional key light with deeper shadows for an editorial mood",
}

var mannequinBackgrounds = map[string]string{
	"white":       "a pure white seamless background",
	"grey":        "a smooth mid-grey studio backdrop",
	"living_room": "a softly blurred styled living room",
	"boutique":    "a softly blurred boutique interior with a clothing rail",
}

var modelLooks = map[string]string{
	"1": "clean-cut, approachable commercial model look with natural makeup and a friendly expression",
	"2": "high-fashion editorial presence with a confident gaze and precise minimal makeup",
	"3": "relaxed urban streetwear attitude with contemporary casual styling",
	"4": "fit athletic build with a sporty, energetic presence",
	"5": "sophisticated model aged 35 to 45 with a refined, elegant appearance",
	"6": "fresh-faced model aged 18 to 25 with vibrant, trend-forward energy",
}

var modelPoses = map[string]string{
	"standing": "standing facing the camera, weight slightly on one hip, arms relaxed",
	"angled":   "standing at a three-quarter angle with one shoulder slightly forward",
	"walking":  "captured mid-stride walking naturally toward the camera",
	"leaning":  "casually leaning against a wall with one foot crossed",
	"seated":   "seated on a high stool with relaxed posture",
	"action":   "mid-turn with natural movement so the fabric flows",
}

var modelBackgrounds = map[string]string{
	"studio_white":  "a clean white seamless studio backdrop with three-point softbox lighting",
	"grey_gradient": "a smooth mid-grey gradient studio backdrop",
	"urban":         "an urban street with blurred architecture in natural daylight",
	"park":          "a park at golden hour with soft green foliage bokeh",
	"brick":         "an exposed brick wall with warm accent lighting",
	"living_room":   "a styled living room in warm afternoon light",
	"beach":         "a summer beach with a soft-focus sea in bright sunlight",
}

var smoothingIntensities = map[string]string{
	"light":    "Remove only the most prominent creases such as deep fold lines and compression marks. Keep gentle natural drape folds.",
	"standard": "Remove all storage creases, fold lines and crumpling. Keep only the drape that gravity creates.",
	"deep":     "Remove every wrinkle, crease and fold line so the fabric looks immaculate and brand new, while keeping its texture.",
}

var steamIntensities = map[string]string{
	"light": "Make the garment look lightly steamed: soften wrinkles but keep a relaxed, lived-in drape.",
	"steam": "Make the garment look freshly steamed and hung: smooth all wrinkles so the fabric falls cleanly.",
	"deep":  "Make the garment look professionally pressed: crisp, smooth fabric with sharp intentional lines only where the design has them.",
}

// EditPrompt builds the instruction sent to the image model for op. Params
// absent from params fall back to the operation defaults.
func EditPrompt(op studio.Operation, params studio.Params, garmentContext string) (string, error) {
	get := func(key string) string { return params.Get(op, key) }
	identity := garmentIdentity(garmentContext)

	switch op {
	case studio.OpCleanBG:
		return prompt(`
			You are a professional product photographer for e-commerce fashion imagery. Remove the background from this clothing photo completely and replace it with a pure white background (#FFFFFF).

			EDGES: Crisp, anti-aliased edges around the whole silhouette. Keep translucency of sheer fabrics, fibre detail on fur and every gap in lace or crochet.

			SHADOW: Keep a soft, diffused grounding shadow directly beneath the garment.

			LIGHTING: Clean, even studio lighting with neutral white balance and no colour cast.

			%s %s%s
			%s`, garmentPreserve, noText, identity, qualityMandate), nil

	case studio.OpLifestyleBG:
		return prompt(`
			You are an editorial fashion photographer creating lifestyle product imagery. Place this clothing item naturally into the following scene: %s.

			DEPTH OF FIELD: The garment is tack sharp and the background shows natural bokeh, as if shot at f/2.8 on a 50mm lens.

			SHADOW AND LIGHT: Cast a realistic soft shadow consistent with the scene's main light, and match the garment's colour temperature to the scene.

			COMPOSITION: The garment is the clear hero with intentional negative space.

			%s %s%s
			%s`, pick(lifestyleScenes, get(studio.ParamScene), "living_room"), garmentPreserve, noText, identity, qualityMandate), nil

	case studio.OpEnhance:
		return prompt(`
			You are a professional retoucher enhancing this clothing photo for premium e-commerce. Keep the original background and composition exactly the same.

			LIGHTING: Correct white balance to neutral daylight, even out exposure and recover shadow and highlight detail.

			DETAIL: Sharpen fabric texture and stitching intelligently and reduce noise without blurring.

			COLOUR: Make colours rich and accurate, never oversaturated.

			%s %s%s
			%s`, garmentPreserve, noText, identity, qualityMandate), nil

	case studio.OpDecrease:
		return prompt(`
			You are a professional fashion retoucher specialising in fabric smoothing. Remove creases, wrinkles and fold lines from this garment.

			INTENSITY: %s

			KEEP: the silhouette, natural drape, fabric texture such as knit, twill or corduroy, design pleats and gathers, and any deliberate fading or distressing.

			BACKGROUND: Leave the background unchanged and edit only the garment.

			%s %s%s
			%s`, pick(smoothingIntensities, get(studio.ParamIntensity), "standard"), garmentPreserve, noText, identity, qualityMandate), nil

	case studio.OpSteam:
		return prompt(`
			You are a professional fashion retoucher. %s

			Keep the garment's shape, fabric texture, colour and every design detail. Leave the background unchanged.

			%s %s%s
			%s`, pick(steamIntensities, get(studio.ParamIntensity), "steam"), garmentPreserve, noText, identity, qualityMandate), nil

	case studio.OpFlatlay:
		return prompt(`
			Create a professional overhead flat-lay product photo of this garment. %s

			Straighten and neaten the layout so every fold looks intentional. Use even, diffused overhead lighting without harsh shadows.

			%s %s%s
			%s`, pick(flatlayStyles, get(studio.ParamStyle), "clean_white"), garmentPreserve, noText, identity, qualityMandate), nil

	case studio.OpMannequin:
		return prompt(`
			You are a professional e-commerce photographer. Show this exact garment dressed on %s.

			LIGHTING: %s.
			BACKGROUND: %s.

			The fabric drapes with natural gravity and realistic wrinkle physics. The garment is centred and fully visible from neckline to hem.

			%s %s%s
			%s`,
			pick(mannequinTypes, get(studio.ParamMannequinType), "invisible"),
			pick(mannequinLightings, get(studio.ParamLighting), "natural"),
			pick(mannequinBackgrounds, get(studio.ParamBackground), "white"),
			garmentPreserve, noText, identity, qualityMandate), nil

	case studio.OpAIModel:
		gender := "female"
		if get(studio.ParamGender) == "man" {
			gender = "male"
		}
		framing := ""
		if get(studio.ParamFullGarment) != "false" {
			framing = "\nCOMPOSITION: Frame the model head to toe. The complete garment from neckline to hem is fully visible and never cropped."
		}
		extra := ""
		if d := strings.TrimSpace(get(studio.ParamDescription)); d != "" {
			extra = "\nMODEL DETAILS: " + d
		}
		return prompt(`
			You are a world-class fashion photographer. Create a photo-realistic image of a %s model wearing this exact garment.

			MODEL: %s.
			POSE: %s.
			SETTING: %s.%s%s

			Skin, hair and hands look natural. The garment fits the body realistically with correct drape and proportions.

			%s %s%s
			%s`,
			gender,
			pick(modelLooks, get(studio.ParamLook), "1"),
			pick(modelPoses, get(studio.ParamPose), "standing"),
			pick(modelBackgrounds, get(studio.ParamModelBackground), "studio_white"),
			framing, extra,
			garmentPreserve, noText, identity, qualityMandate), nil
	}
	return "", fmt.Errorf("unknown operation %q", op)
}

// editModel picks the image model for op; model shots need the stronger one.
func editModel(op studio.Operation) string {
	if op == studio.OpAIModel {
		return geminiProImageModel
	}
	return geminiImageModel
}
